package automaton

import (
	"regexp"
	"strings"
	"unicode"
)

// Transition expressions have the form "<event formula> / <counter pattern>", e.g.
//
//	EVENT_A and not (EVENT_B or EVENT_C) / (Z, NZ, -)
//
// An omitted event formula is always true. Expressions without a separator are
// reward machine expressions and get the implicit counter pattern "(Z)".

const legacyCounterPattern = "(Z)"

var counterPatternShape = regexp.MustCompile(`\((?:\s*(?:Z|NZ|-)\s*,)*\s*(?:Z|NZ|-)\s*\)`)

type eventPredicate func(Events) bool

type counterCondition int

const (
	anyCounter counterCondition = iota
	zeroCounter
	nonZeroCounter
)

// Guard is a compiled transition expression. Guards are immutable.
type Guard struct {
	expr        string
	eventText   string
	counterText string
	events      eventPredicate
	counters    []counterCondition
}

func (g *Guard) Expr() string {
	return g.expr
}

func (g *Guard) EventText() string {
	return g.eventText
}

func (g *Guard) CounterText() string {
	return g.counterText
}

// Arity is the number of counters the guard constrains
func (g *Guard) Arity() int {
	return len(g.counters)
}

// Eval reports whether the guard holds for the events and counter values.
// Only the Zero/NonZero class of each counter is inspected.
func (g *Guard) Eval(events Events, c []int) bool {
	if len(c) != len(g.counters) {
		return false
	}
	return g.EvalClassified(events, Classify(c))
}

func (g *Guard) EvalClassified(events Events, states []CounterState) bool {
	if len(states) != len(g.counters) {
		return false
	}
	for i, cond := range g.counters {
		switch cond {
		case zeroCounter:
			if states[i] != Zero {
				return false
			}
		case nonZeroCounter:
			if states[i] != NonZero {
				return false
			}
		}
	}
	return g.events(events)
}

// IsLegacyExpression is true for reward machine expressions (no counter pattern)
func IsLegacyExpression(expr string) bool {
	return !strings.Contains(expr, "/")
}

// SplitExpression separates the event formula from the counter pattern
func SplitExpression(expr string) (string, string, error) {
	if strings.TrimSpace(expr) == "" {
		return "", "", compileErrorf(expr, "empty expression, %s", expressionFormat)
	}

	n := strings.Count(expr, "/")
	if n == 0 {
		if counterPatternShape.MatchString(expr) {
			return "", "", compileErrorf(expr, "counter pattern without separator, %s", expressionFormat)
		}
		return strings.TrimSpace(expr), legacyCounterPattern, nil
	}
	if n > 1 {
		return "", "", compileErrorf(expr, "more than one separator, %s", expressionFormat)
	}

	parts := strings.SplitN(expr, "/", 2)
	eventText := strings.TrimSpace(parts[0])
	counterText := strings.TrimSpace(parts[1])
	if counterText == "" || !strings.Contains(counterText, "(") || !strings.Contains(counterText, ")") {
		return "", "", compileErrorf(expr, "missing counter pattern, %s", expressionFormat)
	}
	return eventText, counterText, nil
}

// Compile turns a transition expression into a guard over the given alphabet
// and number of counters. All errors are *CompileError.
func Compile(expr string, alphabet Alphabet, counters int) (*Guard, error) {
	eventText, counterText, err := SplitExpression(expr)
	if err != nil {
		return nil, err
	}

	events, err := compileEventFormula(expr, eventText, alphabet)
	if err != nil {
		return nil, err
	}

	conditions, err := compileCounterPattern(expr, counterText, counters)
	if err != nil {
		return nil, err
	}

	return &Guard{
		expr:        expr,
		eventText:   eventText,
		counterText: counterText,
		events:      events,
		counters:    conditions,
	}, nil
}

func compileCounterPattern(expr, text string, counters int) ([]counterCondition, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	if !strings.HasPrefix(compact, "(") || !strings.HasSuffix(compact, ")") {
		return nil, compileErrorf(expr, "counter pattern %q must be parenthesized", text)
	}
	inner := compact[1 : len(compact)-1]

	conditions := make([]counterCondition, 0)
	for _, c := range strings.Split(inner, ",") {
		switch c {
		case "Z":
			conditions = append(conditions, zeroCounter)
		case "NZ":
			conditions = append(conditions, nonZeroCounter)
		case "-":
			conditions = append(conditions, anyCounter)
		default:
			return nil, compileErrorf(expr, "invalid counter expression %q", c)
		}
	}
	if len(conditions) != counters {
		return nil, compileErrorf(expr, "counter pattern has %d entries, machine has %d counters", len(conditions), counters)
	}
	return conditions, nil
}

func compileEventFormula(expr, text string, alphabet Alphabet) (eventPredicate, error) {
	if text == "" {
		return func(Events) bool { return true }, nil
	}
	tokens, err := tokenize(expr, text)
	if err != nil {
		return nil, err
	}
	p := &formulaParser{expr: expr, tokens: tokens, alphabet: alphabet}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, compileErrorf(expr, "unexpected %s at position %d", tok, tok.pos)
	}
	return pred, nil
}

// Tokenizer

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of formula"
	}
	return "'" + t.text + "'"
}

type tokenizer struct {
	input []rune
	pos   int
}

func (t *tokenizer) peek() rune {
	if t.pos >= len(t.input) {
		return 0
	}
	return t.input[t.pos]
}

func (t *tokenizer) advance() rune {
	if t.pos >= len(t.input) {
		return 0
	}
	r := t.input[t.pos]
	t.pos++
	return r
}

func (t *tokenizer) skipWhitespace() {
	for t.pos < len(t.input) && unicode.IsSpace(t.peek()) {
		t.advance()
	}
}

func tokenize(expr, text string) ([]token, error) {
	t := &tokenizer{input: []rune(text)}
	tokens := make([]token, 0)
	for {
		t.skipWhitespace()
		start := t.pos
		if t.pos >= len(t.input) {
			tokens = append(tokens, token{kind: tokEOF, pos: start})
			return tokens, nil
		}

		c := t.peek()
		switch {
		case c == '(':
			t.advance()
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: start})
		case c == ')':
			t.advance()
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: start})
		case isIdentStart(c):
			var sb strings.Builder
			for t.pos < len(t.input) && isIdentPart(t.peek()) {
				sb.WriteRune(t.advance())
			}
			word := sb.String()
			kind := tokIdent
			switch word {
			case "and":
				kind = tokAnd
			case "or":
				kind = tokOr
			case "not":
				kind = tokNot
			}
			tokens = append(tokens, token{kind: kind, text: word, pos: start})
		default:
			return nil, compileErrorf(expr, "unexpected character %q at position %d", c, start)
		}
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !isIdentStart(r) {
			return false
		}
		if !isIdentPart(r) {
			return false
		}
	}
	return true
}

func isKeyword(s string) bool {
	return s == "and" || s == "or" || s == "not"
}

// Parser
//
//	or   := and ('or' and)*
//	and  := not ('and' not)*
//	not  := 'not' not | atom
//	atom := IDENT | '(' or ')'

type formulaParser struct {
	expr     string
	tokens   []token
	pos      int
	alphabet Alphabet
}

func (p *formulaParser) peek() token {
	return p.tokens[p.pos]
}

func (p *formulaParser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *formulaParser) parseOr() (eventPredicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(e Events) bool { return l(e) || r(e) }
	}
	return left, nil
}

func (p *formulaParser) parseAnd() (eventPredicate, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l, r := left, right
		left = func(e Events) bool { return l(e) && r(e) }
	}
	return left, nil
}

func (p *formulaParser) parseNot() (eventPredicate, error) {
	if p.peek().kind == tokNot {
		p.advance()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return func(e Events) bool { return !inner(e) }, nil
	}
	return p.parseAtom()
}

func (p *formulaParser) parseAtom() (eventPredicate, error) {
	tok := p.advance()
	switch tok.kind {
	case tokIdent:
		if !p.alphabet.Contains(tok.text) {
			return nil, compileErrorf(p.expr, "unknown proposition %q", tok.text)
		}
		name := tok.text
		return func(e Events) bool { return e.Has(name) }, nil
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.advance(); closing.kind != tokRParen {
			return nil, compileErrorf(p.expr, "expected ')' at position %d, got %s", closing.pos, closing)
		}
		return inner, nil
	default:
		return nil, compileErrorf(p.expr, "expected proposition or '(' at position %d, got %s", tok.pos, tok)
	}
}
