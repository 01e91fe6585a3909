package automaton

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/counting-rm/rl"
)

const letterYAML = `
name: letter
propositions: [A, B]
initial_state: 0
initial_counters: [0]
transitions:
  0:
    "A / (-)": 0
    "B / (NZ)": 1
    "/ (-)": 0
  1:
    "B / (NZ)": 1
    "/ (Z)": terminal
    "/ (NZ)": 1
counters:
  0:
    "A / (-)": [1]
    "B / (NZ)": [-1]
    "/ (-)": [0]
  1:
    "B / (NZ)": [-1]
    "/ (Z)": [0]
    "/ (NZ)": [0]
rewards:
  0:
    "A / (-)": 0
    "B / (NZ)": 0.5
    "/ (-)": 0
  1:
    "B / (NZ)": 0
    "/ (Z)": done
    "/ (NZ)": 0
samples:
  exhaustive: 3
`

func testRewards() RewardRegistry {
	return RewardRegistry{
		"done": func(_ rl.Observation, _ rl.Action, _ rl.Observation) float64 {
			return 10
		},
	}
}

func TestLoadDefinitionKeepsOrder(t *testing.T) {
	def, err := LoadDefinition(strings.NewReader(letterYAML), testRewards())
	require.NoError(t, err)

	assert.Equal(t, "letter", def.Name)
	assert.Equal(t, Alphabet{"A", "B"}, def.Alphabet)
	assert.Equal(t, []int{0}, def.InitialCounters)

	exprs := make([]string, 0)
	for _, p := range def.StateTransitions[0] {
		exprs = append(exprs, p.Expr)
	}
	assert.Equal(t, []string{"A / (-)", "B / (NZ)", "/ (-)"}, exprs)

	next, ok := def.StateTransitions[1].Get("/ (Z)")
	assert.True(t, ok)
	assert.Equal(t, Terminal, next)
}

func TestLoadedMachineRuns(t *testing.T) {
	def, err := LoadDefinition(strings.NewReader(letterYAML), testRewards())
	require.NoError(t, err)
	m, err := New(def)
	require.NoError(t, err)

	assert.Len(t, m.SampleCounterConfigurations(), 3)

	out, err := m.Transition(0, []int{1}, NewEvents("B"))
	require.NoError(t, err)
	assert.Equal(t, 1, out.State)
	assert.Equal(t, 0.5, out.Reward(nil, nil, nil))

	out, err = m.Transition(1, out.Counters, NewEvents())
	require.NoError(t, err)
	assert.Equal(t, 2, out.State)
	assert.True(t, m.IsTerminal(out.State))
	assert.Equal(t, 10.0, out.Reward(nil, nil, nil))
}

func TestLoadDefinitionErrors(t *testing.T) {
	_, err := LoadDefinition(strings.NewReader("name: [unclosed"), nil)
	assert.ErrorIs(t, err, ErrCompile)

	unknownReward := strings.Replace(letterYAML, "done", "missing", 1)
	_, err = LoadDefinition(strings.NewReader(unknownReward), testRewards())
	assert.ErrorIs(t, err, ErrCompile)

	badNext := strings.Replace(letterYAML, "terminal", "end", 1)
	_, err = LoadDefinition(strings.NewReader(badNext), testRewards())
	assert.ErrorIs(t, err, ErrCompile)
}

func TestLoadRejectsBadSamples(t *testing.T) {
	for name, samples := range map[string]string{
		"arity":    "configurations: [[0, 0], [1]]",
		"negative": "configurations: [[0], [-3]]",
	} {
		t.Run(name, func(t *testing.T) {
			doc := strings.Replace(letterYAML, "exhaustive: 3", samples, 1)
			def, err := LoadDefinition(strings.NewReader(doc), testRewards())
			require.NoError(t, err)
			_, err = New(def)
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "letter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(letterYAML), 0644))

	m, err := LoadFile(path, testRewards())
	require.NoError(t, err)
	assert.Equal(t, "letter", m.Name())
	assert.Equal(t, []int{2}, m.Terminal())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}
