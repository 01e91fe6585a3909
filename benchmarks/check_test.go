package benchmarks

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/counting-rm/automaton"
)

const incompleteYAML = `
name: incomplete
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
counters:
  0:
    "A / (-)": [1]
    "B / (NZ)": [-1]
    "/ (-)": [0]
  1:
    "B / (NZ)": [-1]
    "/ (Z)": [0]
rewards:
  0:
    "A / (-)": 0
    "B / (NZ)": 0
    "/ (-)": 0
  1:
    "B / (NZ)": 1
    "/ (Z)": done
samples:
  exhaustive: 3
`

func writeMachine(t *testing.T, content string) string {
	file := filepath.Join(t.TempDir(), "machine.yaml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))
	return file
}

func TestCheckOfficeMachine(t *testing.T) {
	out := new(bytes.Buffer)
	missing, err := Check(out, "../grid/machines/office.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, missing)
	assert.Contains(t, out.String(), "machine office (reward machine)")
	assert.Contains(t, out.String(), "completeness: 0 missing")
}

func TestCheckReportsMissingTransitions(t *testing.T) {
	file := writeMachine(t, incompleteYAML)

	_, err := Check(new(bytes.Buffer), file, nil)
	assert.ErrorContains(t, err, `unknown reward "done"`)

	out := new(bytes.Buffer)
	missing, err := Check(out, file, []string{"done"})
	require.NoError(t, err)
	assert.Greater(t, missing, 0)
	assert.Contains(t, out.String(), "machine incomplete (counting reward machine)")
	assert.Contains(t, out.String(), "no transition for (1, [1])")
}

func TestCheckCommandStrict(t *testing.T) {
	file := writeMachine(t, incompleteYAML)

	cmd := GetRootCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"check", file, "--stub-reward", "done"})
	require.NoError(t, cmd.Execute())

	cmd = GetRootCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"check", file, "--stub-reward", "done", "--strict"})
	assert.ErrorIs(t, cmd.Execute(), automaton.ErrTableCompleteness)
}

func TestEventSubsets(t *testing.T) {
	subsets := eventSubsets(automaton.NewAlphabet("A", "B", "C"))
	assert.Len(t, subsets, 8)
	assert.Empty(t, subsets[0])
	assert.True(t, subsets[7].Has("A") && subsets[7].Has("B") && subsets[7].Has("C"))
}
