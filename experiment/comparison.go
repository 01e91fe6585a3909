package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"

	"github.com/zeu5/counting-rm/metrics"
	"github.com/zeu5/counting-rm/util"
)

// ComparisonConfig contains the configuration for the comparison
type ComparisonConfig struct {
	Runs     int // number of runs
	Episodes int // number of episodes
	Horizon  int // number of steps

	RecordPath string // path to store the results

	// threshold to abort an experiment
	ConsecutiveErrorsAbort int

	// record flags
	RecordTraces bool

	// print progress to the terminal
	Progress bool

	// number of experiments run at the same time by RunParallel, 0 is unbounded
	Parallelism int

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

func (cfg *ComparisonConfig) logger() *slog.Logger {
	if cfg.Logger == nil {
		return slog.Default()
	}
	return cfg.Logger
}

// Comparison contains the different experiments to compare
// The traces obtained from the experiments are analyzed
// The analyzed datasets are then compared
type Comparison struct {
	Experiments []*Experiment
	analyzers   map[string]Analyzer
	comparators map[string]Comparator
	cConfig     *ComparisonConfig
}

// NewComparison creates a comparison instance
func NewComparison(config *ComparisonConfig) (*Comparison, error) {
	if err := prepareRecordPath(config); err != nil {
		return nil, err
	}
	return &Comparison{
		Experiments: make([]*Experiment, 0),
		analyzers:   make(map[string]Analyzer),
		comparators: make(map[string]Comparator),
		cConfig:     config,
	}, nil
}

func prepareRecordPath(config *ComparisonConfig) error {
	if config.RecordPath == "" {
		return nil
	}
	if err := util.EnsureDir(config.RecordPath); err != nil {
		return fmt.Errorf("creating %s: %w", config.RecordPath, err)
	}
	if config.RecordTraces {
		if err := util.EnsureDir(path.Join(config.RecordPath, "traces")); err != nil {
			return fmt.Errorf("creating traces folder: %w", err)
		}
	}
	return nil
}

// AddAnalysis adds an analyzer and comparator to the comparison
func (c *Comparison) AddAnalysis(name string, analyzer Analyzer, comparator Comparator) {
	c.analyzers[name] = analyzer
	c.comparators[name] = comparator
}

// Add experiments to compare
func (c *Comparison) AddExperiment(e *Experiment) {
	c.Experiments = append(c.Experiments, e)
}

// record the configuration of the comparison
func (c *Comparison) recordConfig() error {
	cfg := c.cConfig
	if cfg.RecordPath == "" {
		return nil
	}

	out := make(map[string]interface{})
	out["runs"] = cfg.Runs
	out["episodes"] = cfg.Episodes
	out["horizon"] = cfg.Horizon
	out["record_traces"] = cfg.RecordTraces

	experiments := make([]string, 0)
	for _, e := range c.Experiments {
		experiments = append(experiments, e.Name)
	}
	out["experiments"] = experiments

	analyzers := make([]string, 0)
	for name := range c.analyzers {
		analyzers = append(analyzers, name)
	}
	sort.Strings(analyzers)
	out["analyzers"] = analyzers

	return util.WriteJSON(path.Join(cfg.RecordPath, "comparison_config.json"), out)
}

// Run the comparison
func (c *Comparison) Run(ctx context.Context) ([]*Result, error) {
	if err := c.recordConfig(); err != nil {
		return nil, fmt.Errorf("recording comparison config: %w", err)
	}

	longestNameLen := 0
	for _, e := range c.Experiments {
		if len(e.Name) > longestNameLen {
			longestNameLen = len(e.Name)
		}
	}

	results := make([]*Result, 0, c.cConfig.Runs*len(c.Experiments))
	for run := 0; run < c.cConfig.Runs; run++ { // number of runs
		if c.cConfig.Progress {
			fmt.Printf("Run %d\n", run+1)
		}
		datasets := make(map[string][]DataSet)

		for name := range c.analyzers {
			datasets[name] = make([]DataSet, len(c.Experiments))
		}

		names := make([]string, len(c.Experiments))
		for i, e := range c.Experiments {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			default:
			}
			result, err := e.Run(c.prepareRunConfig(ctx, run, longestNameLen, true))
			if result != nil {
				results = append(results, result)
				c.summarize(result)
			}
			if err != nil {
				return results, err
			}
			for name, a := range c.analyzers {
				datasets[name][i] = a.DataSet() // call the analyzer on the experiment results
				a.Reset()                       // reset the analyzer
			}
			names[i] = e.Name // name of the experiment
			e.Reset()         // reset the experiment
		}
		for name, comp := range c.comparators {
			comp(run, c.cConfig.Episodes, names, datasets[name]) // make the plots
		}
	}
	return results, nil
}

func (c *Comparison) summarize(r *Result) {
	c.cConfig.logger().Info("experiment finished",
		"experiment", r.Name,
		"run", r.Run,
		"episodes", r.Episodes,
		"success_rate", r.SuccessRate(),
		"errors", r.Errors,
		"steps", r.Steps,
		"counterfactual", r.Counterfactual,
	)
}

// prepare the run configuration for the experiment
func (c *Comparison) prepareRunConfig(ctx context.Context, run, longestExpNameLen int, withAnalyzers bool) *experimentRunConfig {
	rCfg := &experimentRunConfig{
		CurrentRun:             run,
		Episodes:               c.cConfig.Episodes,
		Horizon:                c.cConfig.Horizon,
		Analyzers:              make([]Analyzer, 0),
		Context:                ctx,
		ConsecutiveErrorsAbort: c.cConfig.ConsecutiveErrorsAbort,
		RecordTraces:           c.cConfig.RecordTraces,
		ReportSavePath:         c.cConfig.RecordPath,
		Progress:               c.cConfig.Progress,
		Logger:                 c.cConfig.logger(),
		Metrics:                c.cConfig.Metrics,

		LongestExpNameLen: longestExpNameLen,
	}

	if rCfg.ConsecutiveErrorsAbort == 0 {
		rCfg.ConsecutiveErrorsAbort = 10
	}

	if withAnalyzers {
		for _, a := range c.analyzers {
			rCfg.Analyzers = append(rCfg.Analyzers, a)
		}
	}
	return rCfg
}
