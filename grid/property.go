package grid

import (
	"github.com/zeu5/counting-rm/automaton"
	"github.com/zeu5/counting-rm/crossproduct"
	"github.com/zeu5/counting-rm/rl"
	"gonum.org/v1/gonum/floats"
)

// LetterLabels emits the letter of the cell the agent moved into
func LetterLabels(g *GridEnvironment) crossproduct.LabellingFunction {
	return func(_ rl.Observation, _ rl.Action, next rl.Observation) automaton.Events {
		events := automaton.NewEvents()
		pos, ok := PositionOf(next)
		if !ok {
			return events
		}
		if l, ok := g.LetterAt(pos); ok {
			events.Add(l)
		}
		return events
	}
}

// DistanceReward penalizes the euclidean distance of the next position to target
func DistanceReward(target Position, scale float64) automaton.RewardFunc {
	t := target.Observation()
	return func(_ rl.Observation, _ rl.Action, next rl.Observation) float64 {
		if len(next) < 2 {
			return 0
		}
		return -scale * floats.Distance(next[:2], t, 2)
	}
}

// ProgressReward rewards moving closer to target
func ProgressReward(target Position, scale float64) automaton.RewardFunc {
	t := target.Observation()
	return func(obs rl.Observation, _ rl.Action, next rl.Observation) float64 {
		if len(obs) < 2 || len(next) < 2 {
			return 0
		}
		return scale * (floats.Distance(obs[:2], t, 2) - floats.Distance(next[:2], t, 2))
	}
}
