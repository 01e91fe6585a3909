package crossproduct

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zeu5/counting-rm/automaton"
	"github.com/zeu5/counting-rm/metrics"
	"github.com/zeu5/counting-rm/rl"
)

var ErrNotReset = errors.New("cross product stepped before reset")

// LabellingFunction maps a ground transition to the propositions true on it
type LabellingFunction func(obs rl.Observation, a rl.Action, next rl.Observation) automaton.Events

// Info carries the machine side of a step
type Info struct {
	MachineState int
	Counters     []int
	Events       automaton.Events
	// Success is true when the episode ended in a terminal machine state
	// and false when it was truncated
	Success bool
	Steps   int
}

type StepResult struct {
	Obs        rl.Observation
	Reward     float64
	Terminated bool
	Truncated  bool
	Info       Info
}

// CrossProduct composes a ground environment with a counting reward machine.
// The reward of the ground environment is never used.
//
// A CrossProduct is not safe for concurrent use. The machine can be shared by many.
type CrossProduct struct {
	ground  rl.Environment
	machine *automaton.Machine
	lf      LabellingFunction

	maxSteps int
	scale    float64
	logger   *slog.Logger
	metrics  *metrics.Collector

	groundObs rl.Observation
	u         int
	c         []int
	steps     int
}

func New(ground rl.Environment, machine *automaton.Machine, lf LabellingFunction, opts ...Option) *CrossProduct {
	cp := &CrossProduct{
		ground:   ground,
		machine:  machine,
		lf:       lf,
		maxSteps: DefaultMaxSteps,
		scale:    DefaultCounterScale,
		logger:   discardLogger(),
		u:        machine.InitialState(),
		c:        machine.InitialCounters(),
	}
	for _, o := range opts {
		o(cp)
	}
	cp.logger = cp.logger.With("machine", machine.Name())
	return cp
}

// Reset starts a new episode from the initial machine configuration
func (cp *CrossProduct) Reset() (rl.Observation, error) {
	obs, err := cp.ground.Reset()
	if err != nil {
		return nil, fmt.Errorf("resetting ground environment: %w", err)
	}
	cp.groundObs = obs.Copy()
	cp.u = cp.machine.InitialState()
	cp.c = cp.machine.InitialCounters()
	cp.steps = 0
	return cp.FusedObs(cp.groundObs, cp.u, cp.c), nil
}

func (cp *CrossProduct) Step(action rl.Action) (StepResult, error) {
	if cp.groundObs == nil {
		return StepResult{}, ErrNotReset
	}
	next, err := cp.ground.Step(action)
	if err != nil {
		return StepResult{}, fmt.Errorf("stepping ground environment: %w", err)
	}
	next = next.Copy()

	events := cp.lf(cp.groundObs, action, next)
	out, err := cp.machine.Transition(cp.u, cp.c, events)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %d: %w", cp.steps, err)
	}
	reward := out.Reward(cp.groundObs, action, next)

	if out.State != cp.u {
		cp.logger.Debug("machine transition", "from", cp.u, "to", out.State, "counters", out.Counters, "events", events.String())
	}
	cp.metrics.RecordStep(cp.machine.Name(), cp.u, out.State)

	cp.steps++
	terminated := cp.machine.IsTerminal(out.State)
	truncated := cp.steps >= cp.maxSteps

	cp.u = out.State
	cp.c = out.Counters
	cp.groundObs = next

	switch {
	case terminated:
		cp.metrics.RecordEpisode(cp.machine.Name(), metrics.OutcomeTerminated)
	case truncated:
		cp.metrics.RecordEpisode(cp.machine.Name(), metrics.OutcomeTruncated)
	}

	return StepResult{
		Obs:        cp.FusedObs(next, out.State, out.Counters),
		Reward:     reward,
		Terminated: terminated,
		Truncated:  truncated,
		Info: Info{
			MachineState: out.State,
			Counters:     append([]int{}, out.Counters...),
			Events:       events,
			Success:      terminated,
			Steps:        cp.steps,
		},
	}, nil
}

// FusedObs is g ++ one-hot(u) ++ c/scale ++ classification of c
func (cp *CrossProduct) FusedObs(g rl.Observation, u int, c []int) rl.Observation {
	out := make(rl.Observation, 0, cp.ObservationSize())
	out = append(out, g...)
	out = append(out, cp.machine.EncodeMachineState(u)...)
	out = append(out, cp.machine.EncodeCounterConfiguration(c, cp.scale)...)
	out = append(out, cp.machine.EncodeCounterState(c)...)
	return out
}

// ToGroundObs strips the machine configuration from a fused observation
func (cp *CrossProduct) ToGroundObs(obs rl.Observation) rl.Observation {
	n := cp.ground.ObservationSize()
	if n > len(obs) {
		n = len(obs)
	}
	return obs[:n].Copy()
}

func (cp *CrossProduct) ObservationSize() int {
	return cp.ground.ObservationSize() + cp.machine.NumStates() + 2*cp.machine.NumCounters()
}

func (cp *CrossProduct) Actions() []rl.Action {
	return cp.ground.Actions()
}

func (cp *CrossProduct) Machine() *automaton.Machine {
	return cp.machine
}

// MachineState is the current machine state u
func (cp *CrossProduct) MachineState() int {
	return cp.u
}

// Counters is a copy of the current counter configuration c
func (cp *CrossProduct) Counters() []int {
	return append([]int{}, cp.c...)
}

// GroundObs is the last ground observation
func (cp *CrossProduct) GroundObs() rl.Observation {
	return cp.groundObs.Copy()
}

func (cp *CrossProduct) Steps() int {
	return cp.steps
}
