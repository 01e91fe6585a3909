package automaton

import (
	"errors"
	"fmt"
)

var (
	// ErrCompile is returned for malformed transition expressions and tables
	ErrCompile = errors.New("invalid transition expression")
	// ErrTableCompleteness is returned when no guard fires for a configuration
	ErrTableCompleteness = errors.New("incomplete transition table")
	// ErrInvalidState is returned for unknown or terminal machine states
	ErrInvalidState = errors.New("invalid machine state")
	// ErrFormalismMismatch is returned when a reward machine declares counters
	// or a counting reward machine does not
	ErrFormalismMismatch = errors.New("reward machine formalism mismatch")
	// ErrCounterUnderflow is returned when a counter delta would go below zero
	ErrCounterUnderflow = errors.New("counter underflow")
)

const expressionFormat = "required format is 'WFF / COUNTER_STATES', e.g. 'EVENT_A and not EVENT_B / (Z,NZ)'"

// CompileError describes an expression that could not be compiled.
// State is -1 when the expression was compiled outside of a machine.
type CompileError struct {
	Expr   string
	State  int
	Reason string
}

func (e *CompileError) Error() string {
	if e.State >= 0 {
		return fmt.Sprintf("%s %q in state %d: %s", ErrCompile, e.Expr, e.State, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", ErrCompile, e.Expr, e.Reason)
}

func (e *CompileError) Unwrap() error {
	return ErrCompile
}

func compileErrorf(expr string, format string, args ...interface{}) *CompileError {
	return &CompileError{
		Expr:   expr,
		State:  -1,
		Reason: fmt.Sprintf(format, args...),
	}
}

// CompletenessError identifies the configuration for which no transition fired
type CompletenessError struct {
	State    int
	Counters []int
	Events   Events
}

func (e *CompletenessError) Error() string {
	return fmt.Sprintf("%s: no transition defined for machine configuration (%d, %v) and events %s",
		ErrTableCompleteness, e.State, e.Counters, e.Events)
}

func (e *CompletenessError) Unwrap() error {
	return ErrTableCompleteness
}
