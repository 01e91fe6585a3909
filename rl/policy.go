package rl

import (
	"time"

	"golang.org/x/exp/rand"
)

type Policy interface {
	// Called at the end of an episode with the resulting trace
	UpdateIteration(int, *Trace)
	NextAction(int, Observation, []Action) (Action, bool)
	// Called after every real step with the real experience
	Update(int, Experience)
	Reset()
}

// RandomPolicy picks uniformly among the available actions
type RandomPolicy struct {
	rand *rand.Rand
}

var _ Policy = &RandomPolicy{}

func NewRandomPolicy() *RandomPolicy {
	return NewSeededRandomPolicy(uint64(time.Now().UnixNano()))
}

func NewSeededRandomPolicy(seed uint64) *RandomPolicy {
	return &RandomPolicy{
		rand: rand.New(rand.NewSource(seed)),
	}
}

func (r *RandomPolicy) Reset() {

}

func (r *RandomPolicy) UpdateIteration(_ int, _ *Trace) {

}

func (r *RandomPolicy) NextAction(step int, obs Observation, actions []Action) (Action, bool) {
	if len(actions) == 0 {
		return nil, false
	}
	i := r.rand.Intn(len(actions))
	return actions[i], true
}

func (r *RandomPolicy) Update(_ int, _ Experience) {}
