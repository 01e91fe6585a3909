package automaton

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Entry is one row of a state's transition table
type Entry struct {
	Guard  *Guard
	Next   int
	Delta  []int
	Reward RewardFunc
}

// Outcome of resolving one transition
type Outcome struct {
	State    int
	Counters []int
	Reward   RewardFunc
	// Entry is the position of the fired row in the state's table
	Entry int
}

// Machine is a compiled counting reward machine. Reward machines are run as
// counting reward machines with a single counter that always stays zero.
//
// A Machine is read-only once built and can be shared between goroutines.
type Machine struct {
	name     string
	alphabet Alphabet

	initialState    int
	initialCounters []int
	rewardMachine   bool

	states     []int
	terminal   []int
	stateIndex map[int]int
	table      map[int][]Entry

	sampler CounterSampler
}

// MustNew is New for package level machine definitions
func MustNew(def *Definition) *Machine {
	m, err := New(def)
	if err != nil {
		panic(err)
	}
	return m
}

// New compiles every expression of the definition and freezes the tables
func New(def *Definition) (*Machine, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", ErrCompile)
	}
	if err := def.Alphabet.Validate(); err != nil {
		return nil, err
	}
	if len(def.StateTransitions) == 0 {
		return nil, fmt.Errorf("%w: machine %q has no states", ErrCompile, def.Name)
	}

	rewardMachine := def.isRewardMachine()
	if rewardMachine && def.InitialCounters != nil {
		return nil, fmt.Errorf("%w: reward machines do not have initial counters (machine %q)", ErrFormalismMismatch, def.Name)
	}
	if !rewardMachine && def.InitialCounters == nil {
		return nil, fmt.Errorf("%w: counting reward machines must declare initial counters (machine %q)", ErrFormalismMismatch, def.Name)
	}

	if rewardMachine {
		for _, u := range sortedKeys(def.CounterDeltas) {
			if rows := def.CounterDeltas[u]; len(rows) > 0 {
				return nil, fmt.Errorf("%w: reward machine %q declares counter delta %v for %q in state %d",
					ErrFormalismMismatch, def.Name, rows[0].Value, rows[0].Expr, u)
			}
		}
	}

	counters := []int{0}
	if !rewardMachine {
		if len(def.InitialCounters) == 0 {
			return nil, fmt.Errorf("%w: counting reward machine %q declares no counters", ErrFormalismMismatch, def.Name)
		}
		for _, v := range def.InitialCounters {
			if v < 0 {
				return nil, fmt.Errorf("%w: negative initial counter in %v", ErrInvalidState, def.InitialCounters)
			}
		}
		counters = append([]int{}, def.InitialCounters...)
	}

	// first pass: real state ids
	states := make([]int, 0, len(def.StateTransitions))
	known := make(map[int]bool)
	for u := range def.StateTransitions {
		if u < 0 {
			return nil, fmt.Errorf("%w: state id %d is negative", ErrInvalidState, u)
		}
		states = append(states, u)
		known[u] = true
	}
	sort.Ints(states)
	terminalState := states[len(states)-1] + 1

	if !known[def.InitialState] {
		return nil, fmt.Errorf("%w: initial state %d has no transitions", ErrInvalidState, def.InitialState)
	}

	// second pass: compile, rewrite the terminal sentinel and merge the tables
	table := make(map[int][]Entry)
	for _, u := range states {
		rows := def.StateTransitions[u]
		if len(rows) == 0 {
			return nil, fmt.Errorf("%w: state %d has no transitions", ErrCompile, u)
		}
		entries := make([]Entry, 0, len(rows))
		seen := make(map[string]bool)
		for _, row := range rows {
			if seen[row.Expr] {
				return nil, &CompileError{Expr: row.Expr, State: u, Reason: "duplicate expression"}
			}
			seen[row.Expr] = true

			guard, err := Compile(row.Expr, def.Alphabet, len(counters))
			if err != nil {
				var ce *CompileError
				if errors.As(err, &ce) {
					ce.State = u
				}
				return nil, err
			}

			next := row.Value
			if next == Terminal {
				next = terminalState
			} else if !known[next] {
				return nil, fmt.Errorf("%w: transition %q of state %d leads to undefined state %d", ErrInvalidState, row.Expr, u, next)
			}

			delta, ok := def.CounterDeltas[u].Get(row.Expr)
			if !ok {
				if !rewardMachine {
					return nil, &CompileError{Expr: row.Expr, State: u, Reason: "missing counter delta"}
				}
				delta = make([]int, len(counters))
			}
			if len(delta) != len(counters) {
				return nil, &CompileError{Expr: row.Expr, State: u, Reason: fmt.Sprintf("counter delta %v has %d entries, machine has %d counters", delta, len(delta), len(counters))}
			}

			reward, ok := def.Rewards[u].Get(row.Expr)
			if !ok || reward == nil {
				return nil, &CompileError{Expr: row.Expr, State: u, Reason: "missing reward"}
			}

			entries = append(entries, Entry{
				Guard:  guard,
				Next:   next,
				Delta:  append([]int{}, delta...),
				Reward: reward,
			})
		}
		table[u] = entries
	}

	if err := checkOrphans(def); err != nil {
		return nil, err
	}

	stateIndex := make(map[int]int)
	for i, u := range states {
		stateIndex[u] = i
	}
	stateIndex[terminalState] = len(states)

	sampler := def.Sampler
	if sampler == nil {
		initial := append([]int{}, counters...)
		sampler = FixedCounters(initial)
	}
	if err := checkSamples(sampler(), len(counters)); err != nil {
		return nil, fmt.Errorf("machine %q: %w", def.Name, err)
	}

	return &Machine{
		name:            def.Name,
		alphabet:        append(Alphabet{}, def.Alphabet...),
		initialState:    def.InitialState,
		initialCounters: counters,
		rewardMachine:   rewardMachine,
		states:          states,
		terminal:        []int{terminalState},
		stateIndex:      stateIndex,
		table:           table,
		sampler:         sampler,
	}, nil
}

// checkSamples rejects counterfactual configurations that Query would refuse
func checkSamples(samples [][]int, counters int) error {
	for _, c := range samples {
		if len(c) != counters {
			return fmt.Errorf("%w: sampled counter configuration %v has %d entries, machine has %d counters", ErrInvalidState, c, len(c), counters)
		}
		for _, v := range c {
			if v < 0 {
				return fmt.Errorf("%w: sampled counter configuration %v is negative", ErrInvalidState, c)
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// checkOrphans rejects counter and reward rows without a matching state transition
func checkOrphans(def *Definition) error {
	for u, rows := range def.CounterDeltas {
		for _, row := range rows {
			if !def.StateTransitions[u].Has(row.Expr) {
				return &CompileError{Expr: row.Expr, State: u, Reason: "counter delta without state transition"}
			}
		}
	}
	for u, rows := range def.Rewards {
		for _, row := range rows {
			if !def.StateTransitions[u].Has(row.Expr) {
				return &CompileError{Expr: row.Expr, State: u, Reason: "reward without state transition"}
			}
		}
	}
	return nil
}

// Transition resolves exactly one step from (u, c) on the events.
// The first guard in declaration order that holds fires.
func (m *Machine) Transition(u int, c []int, events Events) (Outcome, error) {
	out, ok, err := m.Query(u, c, events)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return Outcome{}, &CompletenessError{
			State:    u,
			Counters: append([]int{}, c...),
			Events:   NewEvents(events.Sorted()...),
		}
	}
	return out, nil
}

// Query is Transition without the completeness requirement: ok is false when
// no guard of u holds for the configuration
func (m *Machine) Query(u int, c []int, events Events) (Outcome, bool, error) {
	entries, ok := m.table[u]
	if !ok {
		if m.IsTerminal(u) {
			return Outcome{}, false, fmt.Errorf("%w: state %d is terminal", ErrInvalidState, u)
		}
		return Outcome{}, false, fmt.Errorf("%w: state %d is not defined in machine %q", ErrInvalidState, u, m.name)
	}
	if len(c) != len(m.initialCounters) {
		return Outcome{}, false, fmt.Errorf("%w: counter configuration %v has %d entries, machine has %d counters", ErrInvalidState, c, len(c), len(m.initialCounters))
	}

	classes := Classify(c)
	for i, e := range entries {
		if !e.Guard.EvalClassified(events, classes) {
			continue
		}
		next := make([]int, len(c))
		for j := range c {
			next[j] = c[j] + e.Delta[j]
			if next[j] < 0 {
				return Outcome{}, false, fmt.Errorf("%w: transition %q of state %d applies %v to %v", ErrCounterUnderflow, e.Guard.Expr(), u, e.Delta, c)
			}
		}
		return Outcome{
			State:    e.Next,
			Counters: next,
			Reward:   e.Reward,
			Entry:    i,
		}, true, nil
	}
	return Outcome{}, false, nil
}

func (m *Machine) Name() string {
	return m.name
}

func (m *Machine) Alphabet() Alphabet {
	return append(Alphabet{}, m.alphabet...)
}

// States returns the non-terminal states U in ascending order
func (m *Machine) States() []int {
	return append([]int{}, m.states...)
}

// Terminal returns the terminal states F
func (m *Machine) Terminal() []int {
	return append([]int{}, m.terminal...)
}

func (m *Machine) IsTerminal(u int) bool {
	for _, f := range m.terminal {
		if f == u {
			return true
		}
	}
	return false
}

func (m *Machine) InitialState() int {
	return m.initialState
}

func (m *Machine) InitialCounters() []int {
	return append([]int{}, m.initialCounters...)
}

func (m *Machine) NumCounters() int {
	return len(m.initialCounters)
}

func (m *Machine) IsRewardMachine() bool {
	return m.rewardMachine
}

// Entries returns the ordered table of state u
func (m *Machine) Entries(u int) []Entry {
	return append([]Entry{}, m.table[u]...)
}

// NumStates is |U| + |F|, the size of the machine state encoding
func (m *Machine) NumStates() int {
	return len(m.stateIndex)
}

// StateIndex is the position of u in the machine state encoding
func (m *Machine) StateIndex(u int) (int, bool) {
	i, ok := m.stateIndex[u]
	return i, ok
}

// EncodeMachineState returns the one-hot encoding of u over U and F.
// Unknown states encode to all zeros.
func (m *Machine) EncodeMachineState(u int) []float64 {
	out := make([]float64, len(m.stateIndex))
	if i, ok := m.stateIndex[u]; ok {
		out[i] = 1
	}
	return out
}

// EncodeCounterConfiguration divides every counter by scale
func (m *Machine) EncodeCounterConfiguration(c []int, scale float64) []float64 {
	out := make([]float64, len(c))
	for i, v := range c {
		out[i] = float64(v)
	}
	if scale > 0 && scale != 1 {
		floats.Scale(1/scale, out)
	}
	return out
}

// EncodeCounterState returns 0 for zero counters and 1 otherwise
func (m *Machine) EncodeCounterState(c []int) []float64 {
	out := make([]float64, len(c))
	for i, s := range Classify(c) {
		if s == NonZero {
			out[i] = 1
		}
	}
	return out
}

// SampleCounterConfigurations returns the author supplied representative configurations
func (m *Machine) SampleCounterConfigurations() [][]int {
	samples := m.sampler()
	out := make([][]int, len(samples))
	for i, s := range samples {
		out[i] = append([]int{}, s...)
	}
	return out
}

// Relabeling is the outcome of resolving events from a hypothetical configuration
type Relabeling struct {
	State    int
	Counters []int
	Outcome  Outcome
}

// Relabel resolves the events from every non-terminal state and every sampled
// counter configuration. Configurations where no transition fires are left out
// and counted in skipped.
func (m *Machine) Relabel(events Events) ([]Relabeling, int, error) {
	samples := m.SampleCounterConfigurations()
	out := make([]Relabeling, 0, len(m.states)*len(samples))
	skipped := 0
	for _, u := range m.states {
		for _, c := range samples {
			o, ok, err := m.Query(u, c, events)
			if err != nil {
				return nil, 0, fmt.Errorf("relabeling (%d, %v): %w", u, c, err)
			}
			if !ok {
				skipped++
				continue
			}
			out = append(out, Relabeling{State: u, Counters: append([]int{}, c...), Outcome: o})
		}
	}
	return out, skipped, nil
}
