package crossproduct

import (
	"github.com/zeu5/counting-rm/rl"
)

// GenerateCounterfactualExperience relabels one real ground transition with every
// machine state and every sampled counter configuration. Configurations for which
// no transition fires are skipped, so at most |U| x |samples| experiences are returned.
func (cp *CrossProduct) GenerateCounterfactualExperience(obs rl.Observation, action rl.Action, next rl.Observation) ([]rl.Experience, error) {
	events := cp.lf(obs, action, next)
	relabeled, skipped, err := cp.machine.Relabel(events)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		cp.logger.Debug("counterfactual skipped", "configurations", skipped, "events", events.String())
	}

	experiences := make([]rl.Experience, 0, len(relabeled))
	for _, r := range relabeled {
		experiences = append(experiences, rl.Experience{
			Obs:              cp.FusedObs(obs, r.State, r.Counters),
			Action:           action,
			NextObs:          cp.FusedObs(next, r.Outcome.State, r.Outcome.Counters),
			Reward:           r.Outcome.Reward(obs, action, next),
			Terminated:       cp.machine.IsTerminal(r.Outcome.State),
			MachineState:     r.State,
			Counters:         r.Counters,
			NextMachineState: r.Outcome.State,
			NextCounters:     r.Outcome.Counters,
		})
	}
	cp.metrics.RecordCounterfactual(cp.machine.Name(), len(experiences), skipped)
	return experiences, nil
}
