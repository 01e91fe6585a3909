package automaton

import (
	"fmt"
	"sort"
	"strings"
)

// Alphabet is the ordered set of propositions a labelling function can emit
type Alphabet []string

func NewAlphabet(props ...string) Alphabet {
	return Alphabet(props)
}

func (a Alphabet) Contains(p string) bool {
	for _, q := range a {
		if q == p {
			return true
		}
	}
	return false
}

// Validate checks that every proposition is a usable identifier and unique
func (a Alphabet) Validate() error {
	seen := make(map[string]bool)
	for _, p := range a {
		if !isIdentifier(p) || isKeyword(p) {
			return fmt.Errorf("%w: proposition %q is not a valid identifier", ErrCompile, p)
		}
		if seen[p] {
			return fmt.Errorf("%w: duplicate proposition %q", ErrCompile, p)
		}
		seen[p] = true
	}
	return nil
}

// Events is the set of propositions true at one step
type Events map[string]struct{}

func NewEvents(props ...string) Events {
	e := make(Events, len(props))
	for _, p := range props {
		e[p] = struct{}{}
	}
	return e
}

func (e Events) Has(p string) bool {
	_, ok := e[p]
	return ok
}

func (e Events) Add(p string) {
	e[p] = struct{}{}
}

// Sorted returns the propositions in lexical order
func (e Events) Sorted() []string {
	out := make([]string, 0, len(e))
	for p := range e {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (e Events) String() string {
	return "{" + strings.Join(e.Sorted(), ", ") + "}"
}

// CounterState is the abstraction of a counter value seen by guards
type CounterState int

const (
	Zero CounterState = iota
	NonZero
)

func (s CounterState) String() string {
	if s == Zero {
		return "Z"
	}
	return "NZ"
}

// Classify maps every counter to Zero or NonZero
func Classify(c []int) []CounterState {
	out := make([]CounterState, len(c))
	for i, v := range c {
		if v != 0 {
			out[i] = NonZero
		}
	}
	return out
}
