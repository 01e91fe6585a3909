package automaton

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// RewardRegistry resolves reward names used in YAML definitions
type RewardRegistry map[string]RewardFunc

// A YAML definition looks like
//
//	name: letter
//	propositions: [A, B, C]
//	initial_state: 0
//	initial_counters: [0]
//	transitions:
//	  0:
//	    "A / (-)": 0
//	    "B / (NZ)": 1
//	    "/ (-)": 0
//	  1:
//	    "/ (Z)": terminal
//	counters:
//	  0:
//	    "A / (-)": [1]
//	rewards:
//	  0:
//	    "A / (-)": 0
//	    "B / (NZ)": to_b
//	samples:
//	  exhaustive: 3
//
// Rows of a state keep the order in which they are written.
type document struct {
	Name            string               `yaml:"name"`
	Propositions    []string             `yaml:"propositions"`
	InitialState    int                  `yaml:"initial_state"`
	InitialCounters []int                `yaml:"initial_counters"`
	Transitions     map[int]orderedTable `yaml:"transitions"`
	Counters        map[int]orderedTable `yaml:"counters"`
	Rewards         map[int]orderedTable `yaml:"rewards"`
	Samples         *sampleSpec          `yaml:"samples"`
}

type sampleSpec struct {
	Exhaustive     int     `yaml:"exhaustive"`
	Configurations [][]int `yaml:"configurations"`
}

type orderedRow struct {
	expr  string
	value *yaml.Node
}

type orderedTable []orderedRow

func (t *orderedTable) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping from expressions to values", node.Line)
	}
	rows := make(orderedTable, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		rows = append(rows, orderedRow{
			expr:  node.Content[i].Value,
			value: node.Content[i+1],
		})
	}
	*t = rows
	return nil
}

// LoadDefinition decodes a YAML machine definition
func LoadDefinition(r io.Reader, rewards RewardRegistry) (*Definition, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decoding machine definition: %v", ErrCompile, err)
	}

	def := NewDefinition(doc.Name, NewAlphabet(doc.Propositions...))
	def.InitialState = doc.InitialState
	if doc.InitialCounters != nil {
		def.InitialCounters = doc.InitialCounters
	}

	for u, rows := range doc.Transitions {
		m := make(Mapping[int], 0, len(rows))
		for _, row := range rows {
			next, err := decodeNextState(row.value)
			if err != nil {
				return nil, &CompileError{Expr: row.expr, State: u, Reason: err.Error()}
			}
			m = append(m, Pair[int]{Expr: row.expr, Value: next})
		}
		def.StateTransitions[u] = m
	}

	for u, rows := range doc.Counters {
		m := make(Mapping[[]int], 0, len(rows))
		for _, row := range rows {
			var delta []int
			if err := row.value.Decode(&delta); err != nil {
				return nil, &CompileError{Expr: row.expr, State: u, Reason: fmt.Sprintf("invalid counter delta: %v", err)}
			}
			m = append(m, Pair[[]int]{Expr: row.expr, Value: delta})
		}
		def.CounterDeltas[u] = m
	}

	for u, rows := range doc.Rewards {
		m := make(Mapping[RewardFunc], 0, len(rows))
		for _, row := range rows {
			reward, err := decodeReward(row.value, rewards)
			if err != nil {
				return nil, &CompileError{Expr: row.expr, State: u, Reason: err.Error()}
			}
			m = append(m, Pair[RewardFunc]{Expr: row.expr, Value: reward})
		}
		def.Rewards[u] = m
	}

	if doc.Samples != nil {
		switch {
		case len(doc.Samples.Configurations) > 0:
			def.Sampler = FixedCounters(doc.Samples.Configurations...)
		case doc.Samples.Exhaustive > 0:
			n := len(doc.InitialCounters)
			if n == 0 {
				n = 1
			}
			def.Sampler = ExhaustiveCounters(doc.Samples.Exhaustive, n)
		}
	}
	return def, nil
}

// LoadFile reads and compiles a YAML machine definition
func LoadFile(path string, rewards RewardRegistry) (*Machine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	def, err := LoadDefinition(f, rewards)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	m, err := New(def)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", path, err)
	}
	return m, nil
}

func decodeNextState(node *yaml.Node) (int, error) {
	if node.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("next state must be a state id or 'terminal'")
	}
	if node.Value == "terminal" {
		return Terminal, nil
	}
	next, err := strconv.Atoi(node.Value)
	if err != nil {
		return 0, fmt.Errorf("invalid next state %q", node.Value)
	}
	return next, nil
}

func decodeReward(node *yaml.Node, rewards RewardRegistry) (RewardFunc, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("reward must be a number or a reward name")
	}
	if node.Tag == "!!int" || node.Tag == "!!float" {
		v, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid reward %q", node.Value)
		}
		return ConstantReward(v), nil
	}
	reward, ok := rewards[node.Value]
	if !ok {
		return nil, fmt.Errorf("unknown reward %q", node.Value)
	}
	return reward, nil
}
