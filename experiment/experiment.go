package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/zeu5/counting-rm/crossproduct"
	"github.com/zeu5/counting-rm/metrics"
	"github.com/zeu5/counting-rm/rl"
)

type experimentRunConfig struct {
	// execution configuration
	CurrentRun int
	Episodes   int
	Horizon    int
	Analyzers  []Analyzer
	Context    context.Context

	// thresholds to abort the experiment
	ConsecutiveErrorsAbort int

	// record flags
	RecordTraces   bool
	ReportSavePath string

	Progress bool
	Logger   *slog.Logger
	Metrics  *metrics.Collector

	//misc
	LongestExpNameLen int
}

// Experiment runs a policy on a cross product and, optionally, fills a replay
// buffer with real and counterfactual experience
type Experiment struct {
	Name        string
	policy      rl.Policy
	environment *crossproduct.CrossProduct

	buffer         *rl.ReplayBuffer
	counterfactual bool
}

// NewExperiment creates a new experiment instance
func NewExperiment(name string, policy rl.Policy, environment *crossproduct.CrossProduct) *Experiment {
	return &Experiment{
		Name:        name,
		policy:      policy,
		environment: environment,
	}
}

// WithReplay stores every real experience in buffer
func (e *Experiment) WithReplay(buffer *rl.ReplayBuffer) *Experiment {
	e.buffer = buffer
	return e
}

// WithCounterfactual stores every real experience and its counterfactuals in buffer
func (e *Experiment) WithCounterfactual(buffer *rl.ReplayBuffer) *Experiment {
	e.buffer = buffer
	e.counterfactual = true
	return e
}

func (e *Experiment) Buffer() *rl.ReplayBuffer {
	return e.buffer
}

// Result summarizes one run of an experiment
type Result struct {
	Name           string    `json:"name"`
	Run            int       `json:"run"`
	Episodes       int       `json:"episodes"`
	Terminated     int       `json:"terminated"`
	Truncated      int       `json:"truncated"`
	Errors         int       `json:"errors"`
	Steps          int       `json:"steps"`
	Counterfactual int       `json:"counterfactual"`
	Returns        []float64 `json:"returns"`
}

// SuccessRate is the fraction of episodes that reached a terminal machine state
func (r *Result) SuccessRate() float64 {
	if r.Episodes == 0 {
		return 0
	}
	return float64(r.Terminated) / float64(r.Episodes)
}

// EpisodeResult is the outcome of a single episode
type EpisodeResult struct {
	ID             string
	Trace          *rl.Trace
	Terminated     bool
	Truncated      bool
	Counterfactual int
	Err            error
}

// Run the experiment for the specified number of episodes
func (e *Experiment) Run(rConfig *experimentRunConfig) (*Result, error) {
	result := &Result{
		Name:    e.Name,
		Run:     rConfig.CurrentRun,
		Returns: make([]float64, 0, rConfig.Episodes),
	}
	logger := rConfig.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("experiment", e.Name, "run", rConfig.CurrentRun)

	EPPadding := len(strconv.Itoa(rConfig.Episodes))
	NamePadding := rConfig.LongestExpNameLen
	consecutiveErrors := 0

	for episode := 0; episode < rConfig.Episodes; episode++ {
		select {
		case <-rConfig.Context.Done():
			return result, rConfig.Context.Err()
		default:
		}

		eResult := e.RunEpisode(rConfig.Context, episode, rConfig.Horizon)
		result.Episodes += 1
		result.Steps += eResult.Trace.Len()
		result.Counterfactual += eResult.Counterfactual
		result.Returns = append(result.Returns, eResult.Trace.Return())

		// possible outcomes of the episode
		switch {
		case eResult.Err != nil:
			result.Errors += 1
			consecutiveErrors += 1
			rConfig.Metrics.RecordEpisode(e.environment.Machine().Name(), metrics.OutcomeError)
			logger.Warn("episode failed", "episode", episode, "err", eResult.Err)
		case eResult.Terminated:
			result.Terminated += 1
			consecutiveErrors = 0
		default:
			result.Truncated += 1
			consecutiveErrors = 0
		}

		if rConfig.RecordTraces {
			if err := recordTrace(rConfig.ReportSavePath, e.Name, rConfig.CurrentRun, episode, eResult); err != nil {
				logger.Error("recording trace", "err", err)
			}
		}

		// analyze the trace, even if the episode ended with an error
		for _, a := range rConfig.Analyzers {
			a.Analyze(rConfig.CurrentRun, episode, e.Name, eResult.Trace)
		}

		if rConfig.ConsecutiveErrorsAbort > 0 && consecutiveErrors >= rConfig.ConsecutiveErrorsAbort {
			if rConfig.Progress {
				fmt.Printf("\n Aborting experiment %s : %d consecutive errors\n", e.Name, consecutiveErrors)
			}
			return result, fmt.Errorf("experiment %s aborted after %d consecutive errors: %w", e.Name, consecutiveErrors, eResult.Err)
		}

		// terminal execution display
		if rConfig.Progress {
			fmt.Printf("\rExp:%*s, Eps:%*d/%d, Steps:%8d || Term:%*d [%5.1f%%], Trunc:%*d, Err:%*d || CF:%d",
				NamePadding, e.Name, EPPadding, result.Episodes, rConfig.Episodes, result.Steps,
				EPPadding, result.Terminated, result.SuccessRate()*100, EPPadding, result.Truncated, EPPadding, result.Errors,
				result.Counterfactual)
		}
	}
	if rConfig.Progress {
		fmt.Println("")
	}
	return result, nil
}

// RunEpisode runs a single episode of at most horizon steps
func (e *Experiment) RunEpisode(ctx context.Context, episode, horizon int) *EpisodeResult {
	result := &EpisodeResult{
		ID:    uuid.NewString(),
		Trace: rl.NewTrace(),
	}

	obs, err := e.environment.Reset()
	if err != nil {
		result.Err = err
		return result
	}
	actions := e.environment.Actions()

	for i := 0; i < horizon; i++ {
		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			return result
		default:
		}
		if len(actions) == 0 {
			break
		}
		nextAction, ok := e.policy.NextAction(i, obs, actions)
		if !ok {
			break
		}

		u, c := e.environment.MachineState(), e.environment.Counters()
		groundObs := e.environment.GroundObs()
		step, err := e.environment.Step(nextAction)
		if err != nil {
			result.Err = err
			break
		}

		exp := rl.Experience{
			Obs:              obs,
			Action:           nextAction,
			NextObs:          step.Obs,
			Reward:           step.Reward,
			Terminated:       step.Terminated,
			Truncated:        step.Truncated,
			MachineState:     u,
			Counters:         c,
			NextMachineState: step.Info.MachineState,
			NextCounters:     step.Info.Counters,
		}
		result.Trace.Append(exp)
		e.policy.Update(i, exp)

		if e.buffer != nil {
			e.buffer.Add(exp)
			if e.counterfactual {
				synthetic, err := e.environment.GenerateCounterfactualExperience(groundObs, nextAction, e.environment.GroundObs())
				if err != nil {
					result.Err = err
					break
				}
				e.buffer.Add(synthetic...)
				result.Counterfactual += len(synthetic)
			}
		}

		obs = step.Obs
		if step.Terminated {
			result.Terminated = true
			break
		}
		if step.Truncated {
			result.Truncated = true
			break
		}
	}
	e.policy.UpdateIteration(episode, result.Trace)
	return result
}

// Reset cleans the policy and the replay buffer between runs
func (e *Experiment) Reset() {
	e.policy.Reset()
	if e.buffer != nil {
		e.buffer.Reset()
	}
}
