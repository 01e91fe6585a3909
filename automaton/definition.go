package automaton

import (
	"github.com/zeu5/counting-rm/rl"
)

// Terminal is the sentinel next state marking a transition into the terminal state.
// It is replaced by max(state ids)+1 when the machine is built.
const Terminal = -1

// RewardFunc computes the reward of a ground transition once the
// machine transition that selected it has fired
type RewardFunc func(obs rl.Observation, action rl.Action, next rl.Observation) float64

// ConstantReward ignores the ground transition
func ConstantReward(v float64) RewardFunc {
	return func(_ rl.Observation, _ rl.Action, _ rl.Observation) float64 {
		return v
	}
}

// CounterSampler returns a finite set of representative counter configurations
// used for counterfactual experience generation
type CounterSampler func() [][]int

// Pair is one raw expression with its associated output
type Pair[V any] struct {
	Expr  string
	Value V
}

// Mapping is an expression keyed table that keeps declaration order
type Mapping[V any] []Pair[V]

func (m Mapping[V]) Get(expr string) (V, bool) {
	for _, p := range m {
		if p.Expr == expr {
			return p.Value, true
		}
	}
	var zero V
	return zero, false
}

func (m Mapping[V]) Has(expr string) bool {
	_, ok := m.Get(expr)
	return ok
}

// Set replaces the value of an existing expression or appends a new one
func (m *Mapping[V]) Set(expr string, v V) {
	for i, p := range *m {
		if p.Expr == expr {
			(*m)[i].Value = v
			return
		}
	}
	*m = append(*m, Pair[V]{Expr: expr, Value: v})
}

// Append adds a row even when the expression is already present, leaving
// duplicates for New to reject
func (m *Mapping[V]) Append(expr string, v V) {
	*m = append(*m, Pair[V]{Expr: expr, Value: v})
}

// Definition is the authoring surface of a (counting) reward machine: three raw
// tables keyed by current state, each mapping expressions to an output
type Definition struct {
	Name     string
	Alphabet Alphabet

	InitialState int
	// InitialCounters must be nil for reward machines and set for counting reward machines
	InitialCounters []int

	StateTransitions map[int]Mapping[int]
	CounterDeltas    map[int]Mapping[[]int]
	Rewards          map[int]Mapping[RewardFunc]

	// Sampler defaults to the initial counter configuration
	Sampler CounterSampler
}

func NewDefinition(name string, alphabet Alphabet) *Definition {
	return &Definition{
		Name:             name,
		Alphabet:         alphabet,
		StateTransitions: make(map[int]Mapping[int]),
		CounterDeltas:    make(map[int]Mapping[[]int]),
		Rewards:          make(map[int]Mapping[RewardFunc]),
	}
}

// WithCounters sets the initial counter configuration (counting reward machines only)
func (d *Definition) WithCounters(c ...int) *Definition {
	d.InitialCounters = append([]int{}, c...)
	return d
}

func (d *Definition) WithInitialState(u int) *Definition {
	d.InitialState = u
	return d
}

func (d *Definition) WithSampler(s CounterSampler) *Definition {
	d.Sampler = s
	return d
}

// From returns a builder adding transitions out of state u
func (d *Definition) From(u int) *StateBuilder {
	return &StateBuilder{
		def:   d,
		state: u,
	}
}

// StateBuilder appends rows to all three tables of one state
type StateBuilder struct {
	def   *Definition
	state int
}

// On adds a transition. delta is left out for reward machines.
func (b *StateBuilder) On(expr string, next int, reward RewardFunc, delta ...int) *StateBuilder {
	d := b.def
	st := d.StateTransitions[b.state]
	st.Append(expr, next)
	d.StateTransitions[b.state] = st

	rw := d.Rewards[b.state]
	rw.Append(expr, reward)
	d.Rewards[b.state] = rw

	if len(delta) > 0 {
		cd := d.CounterDeltas[b.state]
		cd.Append(expr, append([]int{}, delta...))
		d.CounterDeltas[b.state] = cd
	}
	return b
}

// OnValue is On with a constant reward
func (b *StateBuilder) OnValue(expr string, next int, reward float64, delta ...int) *StateBuilder {
	return b.On(expr, next, ConstantReward(reward), delta...)
}

// isRewardMachine is true when no expression carries a counter pattern
func (d *Definition) isRewardMachine() bool {
	for _, m := range d.StateTransitions {
		for _, p := range m {
			if !IsLegacyExpression(p.Expr) {
				return false
			}
		}
	}
	return true
}
