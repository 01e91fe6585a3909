package rl

// Experience is one (possibly synthetic) transition of the cross-product MDP
type Experience struct {
	Obs        Observation `json:"obs"`
	Action     Action      `json:"-"`
	NextObs    Observation `json:"next_obs"`
	Reward     float64     `json:"reward"`
	Terminated bool        `json:"terminated"`
	Truncated  bool        `json:"truncated"`

	// machine configuration before and after the transition
	MachineState     int   `json:"u"`
	Counters         []int `json:"c"`
	NextMachineState int   `json:"next_u"`
	NextCounters     []int `json:"next_c"`
}

// Trace of an episode as a sequence of experiences
type Trace struct {
	experiences []Experience
}

func NewTrace() *Trace {
	return &Trace{
		experiences: make([]Experience, 0),
	}
}

func (t *Trace) Append(e Experience) {
	t.experiences = append(t.experiences, e)
}

func (t *Trace) Len() int {
	return len(t.experiences)
}

func (t *Trace) Get(i int) (Experience, bool) {
	if i < 0 || i >= len(t.experiences) {
		return Experience{}, false
	}
	return t.experiences[i], true
}

func (t *Trace) Last() (Experience, bool) {
	return t.Get(len(t.experiences) - 1)
}

func (t *Trace) Slice(from, to int) *Trace {
	sliced := NewTrace()
	for i := from; i < to && i < len(t.experiences); i++ {
		sliced.Append(t.experiences[i])
	}
	return sliced
}

func (t *Trace) GetPrefix(i int) (*Trace, bool) {
	if i > len(t.experiences) {
		return nil, false
	}
	return &Trace{
		experiences: t.experiences[0:i],
	}, true
}

// Return is the undiscounted sum of rewards along the trace
func (t *Trace) Return() float64 {
	total := 0.0
	for _, e := range t.experiences {
		total += e.Reward
	}
	return total
}

// Terminated is true if the last step reached a terminal machine state
func (t *Trace) Terminated() bool {
	last, ok := t.Last()
	return ok && last.Terminated
}

// Experiences returns the underlying steps, used when serializing a trace
func (t *Trace) Experiences() []Experience {
	return t.experiences
}
