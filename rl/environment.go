package rl

import (
	"strconv"
	"strings"
)

// Environment is a ground MDP. Its own reward signal, if any, is not part of the contract.
type Environment interface {
	// Reset called at the start of each episode
	Reset() (Observation, error)
	// Step applies the action and returns the next observation
	Step(Action) (Observation, error)
	// Actions available to the agent
	Actions() []Action
	// ObservationSize is the length of every observation returned
	ObservationSize() int
}

// Observation is a flat numeric observation vector
type Observation []float64

// Hash should be deterministic
func (o Observation) Hash() string {
	parts := make([]string, len(o))
	for i, v := range o {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Copy returns an observation that does not share memory with o
func (o Observation) Copy() Observation {
	out := make(Observation, len(o))
	copy(out, o)
	return out
}

// Action an RL policy can take
type Action interface {
	// Index of the action
	// Should be deterministic
	Hash() string
}

// NamedAction is an action identified only by its name
type NamedAction string

func (n NamedAction) Hash() string {
	return string(n)
}
