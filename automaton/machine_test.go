package automaton

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeStateDefinition() *Definition {
	def := NewDefinition("three", NewAlphabet("T_1", "T_2", "T_3")).WithCounters(0, 0, 0)
	def.From(0).
		OnValue("T_1 / (-,-,-)", 1, 0, 0, 0, 0).
		OnValue("not T_1 / (-,-,-)", 0, 0, 0, 0, 0)
	def.From(1).
		OnValue("T_2 / (-,-,-)", 2, 0, 0, 0, 0).
		OnValue("not T_2 / (-,-,-)", 1, 0, 0, 0, 0)
	def.From(2).
		OnValue("T_3 / (-,-,Z)", Terminal, 1, 0, 0, 0).
		OnValue("/ (-,-,-)", 2, 0, 0, 0, 0)
	return def
}

func counterDefinition() *Definition {
	def := NewDefinition("counter", NewAlphabet("A", "B")).WithCounters(0)
	def.From(0).
		OnValue("A / (-)", 0, 0, 1).
		OnValue("B / (NZ)", 1, 0, -1).
		OnValue("/ (-)", 0, 0, 0)
	def.From(1).
		OnValue("B / (NZ)", 1, 0, -1).
		OnValue("/ (Z)", Terminal, 1, 0).
		OnValue("/ (NZ)", 1, 0, 0)
	return def
}

func TestTerminalSentinelIsRewritten(t *testing.T) {
	m, err := New(threeStateDefinition())
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, m.States())
	assert.Equal(t, []int{3}, m.Terminal())
	assert.True(t, m.IsTerminal(3))
	assert.False(t, m.IsTerminal(2))

	out, err := m.Transition(2, []int{0, 0, 0}, NewEvents("T_3"))
	require.NoError(t, err)
	assert.Equal(t, 3, out.State)
	assert.Equal(t, []int{0, 0, 0}, out.Counters)
	assert.Equal(t, 1.0, out.Reward(nil, nil, nil))
	assert.Equal(t, 0, out.Entry)

	for _, e := range m.Entries(2) {
		assert.NotEqual(t, Terminal, e.Next)
	}
}

func TestTransitionFirstMatchWins(t *testing.T) {
	def := NewDefinition("order", NewAlphabet("A")).WithCounters(0)
	def.From(0).
		OnValue("A / (-)", 1, 2, 0).
		OnValue("/ (-)", 0, 0, 0)
	def.From(1).OnValue("/ (-)", Terminal, 0, 0)
	m := MustNew(def)

	out, err := m.Transition(0, []int{0}, NewEvents("A"))
	require.NoError(t, err)
	assert.Equal(t, 1, out.State)
	assert.Equal(t, 0, out.Entry)
	assert.Equal(t, 2.0, out.Reward(nil, nil, nil))

	out, err = m.Transition(0, []int{0}, NewEvents())
	require.NoError(t, err)
	assert.Equal(t, 0, out.State)
	assert.Equal(t, 1, out.Entry)
}

func TestTransitionAppliesCounterDeltas(t *testing.T) {
	m := MustNew(counterDefinition())
	assert.False(t, m.IsRewardMachine())
	assert.Equal(t, 1, m.NumCounters())

	u, c := m.InitialState(), m.InitialCounters()
	steps := []Events{NewEvents("A"), NewEvents("A"), NewEvents("B"), NewEvents("B"), NewEvents()}
	for _, events := range steps {
		out, err := m.Transition(u, c, events)
		require.NoError(t, err)
		u, c = out.State, out.Counters
	}
	assert.Equal(t, 2, u)
	assert.True(t, m.IsTerminal(u))
	assert.Equal(t, []int{0}, c)
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	m := MustNew(counterDefinition())
	c := []int{3}
	out, err := m.Transition(0, c, NewEvents("A"))
	require.NoError(t, err)
	assert.Equal(t, []int{3}, c)
	assert.Equal(t, []int{4}, out.Counters)
}

func TestTransitionErrors(t *testing.T) {
	m := MustNew(counterDefinition())

	_, err := m.Transition(2, []int{0}, NewEvents())
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = m.Transition(7, []int{0}, NewEvents())
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = m.Transition(0, []int{0, 0}, NewEvents())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTransitionCompleteness(t *testing.T) {
	def := NewDefinition("incomplete", NewAlphabet("A")).WithCounters(0)
	def.From(0).OnValue("A / (NZ)", Terminal, 1, 0)
	m := MustNew(def)

	_, err := m.Transition(0, []int{0}, NewEvents("A"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTableCompleteness)

	var ce *CompletenessError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 0, ce.State)
	assert.Equal(t, []int{0}, ce.Counters)
	assert.True(t, ce.Events.Has("A"))

	_, ok, err := m.Query(0, []int{0}, NewEvents("A"))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestTransitionUnderflow(t *testing.T) {
	def := NewDefinition("underflow", NewAlphabet("A")).WithCounters(0)
	def.From(0).OnValue("A / (-)", 0, 0, -1).OnValue("/ (-)", 0, 0, 0)
	m := MustNew(def)

	_, err := m.Transition(0, []int{0}, NewEvents("A"))
	assert.ErrorIs(t, err, ErrCounterUnderflow)

	out, err := m.Transition(0, []int{1}, NewEvents("A"))
	require.NoError(t, err)
	assert.Equal(t, []int{0}, out.Counters)
}

func TestRewardMachineEmulation(t *testing.T) {
	def := NewDefinition("office", NewAlphabet("M", "C", "P"))
	def.From(0).OnValue("M", 1, 1).OnValue("not M", 0, 0)
	def.From(1).OnValue("C", 2, 1).OnValue("not C", 1, 0)
	def.From(2).OnValue("P", Terminal, 1).OnValue("not P", 2, 0)

	m, err := New(def)
	require.NoError(t, err)
	assert.True(t, m.IsRewardMachine())
	assert.Equal(t, []int{0}, m.InitialCounters())
	assert.Equal(t, []int{3}, m.Terminal())
	assert.Equal(t, [][]int{{0}}, m.SampleCounterConfigurations())

	u, c := 0, m.InitialCounters()
	total := 0.0
	for _, events := range []Events{NewEvents(), NewEvents("M"), NewEvents("P"), NewEvents("C"), NewEvents("P")} {
		out, err := m.Transition(u, c, events)
		require.NoError(t, err)
		total += out.Reward(nil, nil, nil)
		u, c = out.State, out.Counters
		assert.Equal(t, []int{0}, c)
	}
	assert.Equal(t, 3, u)
	assert.Equal(t, 3.0, total)
}

func TestFormalismMismatch(t *testing.T) {
	rm := NewDefinition("rm", NewAlphabet("A")).WithCounters(0)
	rm.From(0).OnValue("A", Terminal, 1).OnValue("not A", 0, 0)
	_, err := New(rm)
	assert.ErrorIs(t, err, ErrFormalismMismatch)

	crm := NewDefinition("crm", NewAlphabet("A"))
	crm.From(0).OnValue("A / (Z)", Terminal, 1).OnValue("not A / (Z)", 0, 0)
	_, err = New(crm)
	assert.ErrorIs(t, err, ErrFormalismMismatch)

	// the dummy counter of a reward machine never moves
	withDelta := NewDefinition("rm", NewAlphabet("A"))
	withDelta.From(0).OnValue("A", 0, 1, 1).OnValue("not A", 0, 0)
	_, err = New(withDelta)
	assert.ErrorIs(t, err, ErrFormalismMismatch)
	assert.ErrorContains(t, err, `"A" in state 0`)
}

func TestNewRejectsBadTables(t *testing.T) {
	t.Run("compile error names state", func(t *testing.T) {
		def := NewDefinition("bad", NewAlphabet("A")).WithCounters(0)
		def.From(0).OnValue("/ (-)", 0, 0, 0)
		def.From(4).OnValue("B / (-)", 0, 0, 0)
		_, err := New(def)
		var ce *CompileError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, 4, ce.State)
		assert.Equal(t, "B / (-)", ce.Expr)
	})

	t.Run("missing delta", func(t *testing.T) {
		def := NewDefinition("bad", NewAlphabet("A")).WithCounters(0)
		def.From(0).OnValue("/ (-)", 0, 0)
		_, err := New(def)
		assert.ErrorIs(t, err, ErrCompile)
	})

	t.Run("delta arity", func(t *testing.T) {
		def := NewDefinition("bad", NewAlphabet("A")).WithCounters(0)
		def.From(0).OnValue("/ (-)", 0, 0, 1, 1)
		_, err := New(def)
		assert.ErrorIs(t, err, ErrCompile)
	})

	t.Run("missing reward", func(t *testing.T) {
		def := NewDefinition("bad", NewAlphabet("A")).WithCounters(0)
		def.From(0).OnValue("/ (-)", 0, 0, 0)
		def.Rewards[0] = Mapping[RewardFunc]{}
		_, err := New(def)
		assert.ErrorIs(t, err, ErrCompile)
	})

	t.Run("orphan reward", func(t *testing.T) {
		def := NewDefinition("bad", NewAlphabet("A")).WithCounters(0)
		def.From(0).OnValue("/ (-)", 0, 0, 0)
		rw := def.Rewards[0]
		rw.Set("A / (-)", ConstantReward(1))
		def.Rewards[0] = rw
		_, err := New(def)
		assert.ErrorIs(t, err, ErrCompile)
	})

	t.Run("undefined next state", func(t *testing.T) {
		def := NewDefinition("bad", NewAlphabet("A")).WithCounters(0)
		def.From(0).OnValue("/ (-)", 5, 0, 0)
		_, err := New(def)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("initial state", func(t *testing.T) {
		def := NewDefinition("bad", NewAlphabet("A")).WithCounters(0).WithInitialState(1)
		def.From(0).OnValue("/ (-)", 0, 0, 0)
		_, err := New(def)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("no states", func(t *testing.T) {
		_, err := New(NewDefinition("empty", NewAlphabet("A")))
		assert.ErrorIs(t, err, ErrCompile)
	})

	t.Run("duplicate expression", func(t *testing.T) {
		def := NewDefinition("bad", NewAlphabet("A")).WithCounters(0)
		def.From(0).
			OnValue("A / (-)", 0, 1, 0).
			OnValue("/ (-)", 0, 0, 0).
			OnValue("A / (-)", 0, 5, 0)
		_, err := New(def)
		var ce *CompileError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "A / (-)", ce.Expr)
		assert.Equal(t, "duplicate expression", ce.Reason)
	})

	t.Run("sample arity", func(t *testing.T) {
		def := NewDefinition("bad", NewAlphabet("A")).WithCounters(0).
			WithSampler(FixedCounters([]int{0}, []int{0, 0}))
		def.From(0).OnValue("/ (-)", 0, 0, 0)
		_, err := New(def)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("negative sample", func(t *testing.T) {
		def := NewDefinition("bad", NewAlphabet("A")).WithCounters(0).
			WithSampler(FixedCounters([]int{-3}))
		def.From(0).OnValue("/ (-)", 0, 0, 0)
		_, err := New(def)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("negative initial counter", func(t *testing.T) {
		def := NewDefinition("bad", NewAlphabet("A")).WithCounters(-1)
		def.From(0).OnValue("/ (-)", 0, 0, 0)
		_, err := New(def)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestMachineEncodings(t *testing.T) {
	m := MustNew(threeStateDefinition())
	assert.Equal(t, 4, m.NumStates())
	assert.Equal(t, []float64{0, 0, 1, 0}, m.EncodeMachineState(2))
	assert.Equal(t, []float64{0, 0, 0, 1}, m.EncodeMachineState(3))
	assert.Equal(t, []float64{0, 0, 0, 0}, m.EncodeMachineState(9))

	idx, ok := m.StateIndex(3)
	assert.True(t, ok)
	assert.Equal(t, 3, idx)

	assert.Equal(t, []float64{0, 2, 5}, m.EncodeCounterConfiguration([]int{0, 2, 5}, 1))
	assert.InDeltaSlice(t, []float64{0, 0.2, 0.5}, m.EncodeCounterConfiguration([]int{0, 2, 5}, 10), 1e-9)
	assert.Equal(t, []float64{0, 1, 1}, m.EncodeCounterState([]int{0, 2, 5}))
}

func TestSampleCounterConfigurationsAreCopies(t *testing.T) {
	def := counterDefinition().WithSampler(FixedCounters([]int{0}, []int{3}))
	m := MustNew(def)

	samples := m.SampleCounterConfigurations()
	require.Len(t, samples, 2)
	samples[1][0] = 100
	assert.Equal(t, [][]int{{0}, {3}}, m.SampleCounterConfigurations())
}

func TestCompletenessErrorKeepsEvents(t *testing.T) {
	def := NewDefinition("sparse", NewAlphabet("A", "B")).WithCounters(0)
	def.From(0).OnValue("A / (-)", 0, 0, 0)
	m := MustNew(def)

	events := NewEvents("B")
	_, err := m.Transition(0, []int{0}, events)
	var ce *CompletenessError
	require.True(t, errors.As(err, &ce))
	msg := err.Error()

	events.Add("A")
	assert.False(t, ce.Events.Has("A"))
	assert.Equal(t, msg, err.Error())
}

func TestRelabel(t *testing.T) {
	def := counterDefinition().WithSampler(FixedCounters([]int{0}, []int{1}, []int{2}))
	m := MustNew(def)

	relabeled, skipped, err := m.Relabel(NewEvents("B"))
	require.NoError(t, err)
	// state 0 always fires, state 1 only with a nonzero counter
	assert.Len(t, relabeled, 6)
	assert.Equal(t, 0, skipped)

	for _, r := range relabeled {
		if r.State == 1 && r.Counters[0] == 0 {
			assert.Equal(t, 2, r.Outcome.State)
		}
	}

	def = NewDefinition("sparse", NewAlphabet("A")).WithCounters(0).WithSampler(FixedCounters([]int{0}, []int{1}))
	def.From(0).OnValue("A / (NZ)", Terminal, 1, 0).OnValue("not A / (-)", 0, 0, 0)
	m = MustNew(def)
	relabeled, skipped, err = m.Relabel(NewEvents("A"))
	require.NoError(t, err)
	require.Len(t, relabeled, 1)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, []int{1}, relabeled[0].Counters)
	assert.True(t, m.IsTerminal(relabeled[0].Outcome.State))
}
