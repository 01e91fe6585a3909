package benchmarks

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/spf13/cobra"
	"github.com/zeu5/counting-rm/crossproduct"
	"github.com/zeu5/counting-rm/experiment"
	"github.com/zeu5/counting-rm/grid"
	"github.com/zeu5/counting-rm/rl"
)

type letterConfig struct {
	height, width int
	extra         int
	seed          uint64
	bufferSize    int
	parallel      bool
	metricsAddr   string
}

// Letter compares a random walk on the letter world with and without
// counterfactual experience
func Letter(ctx context.Context, cfg letterConfig) error {
	logger := slog.Default()
	collector, stop := startMetrics(cfg.metricsAddr, logger)
	defer stop()

	c, err := experiment.NewComparison(&experiment.ComparisonConfig{
		Runs:                   runs,
		Episodes:               episodes,
		Horizon:                horizon,
		RecordPath:             saveFile,
		ConsecutiveErrorsAbort: 10,
		RecordTraces:           false,
		Progress:               !cfg.parallel,
		Logger:                 logger,
		Metrics:                collector,
	})
	if err != nil {
		return err
	}

	newExperiment := func(name string, seed uint64) (*experiment.Experiment, error) {
		g := grid.LetterWorld(cfg.height, cfg.width)
		m, err := grid.LetterMachine(g, cfg.extra, horizon, cfg.seed)
		if err != nil {
			return nil, fmt.Errorf("building letter machine: %w", err)
		}
		cp := crossproduct.New(g, m, grid.LetterLabels(g),
			crossproduct.WithMaxSteps(horizon),
			crossproduct.WithCounterScale(float64(horizon)),
			crossproduct.WithLogger(logger.With("experiment", name)),
			crossproduct.WithMetrics(collector),
		)
		return experiment.NewExperiment(name, rl.NewSeededRandomPolicy(seed), cp), nil
	}

	plain, err := newExperiment("Random", cfg.seed)
	if err != nil {
		return err
	}
	c.AddExperiment(plain.WithReplay(rl.NewReplayBuffer(cfg.bufferSize, cfg.seed)))

	relabeled, err := newExperiment("Random-CRM", cfg.seed+1)
	if err != nil {
		return err
	}
	c.AddExperiment(relabeled.WithCounterfactual(rl.NewReplayBuffer(cfg.bufferSize, cfg.seed+1)))

	if cfg.parallel {
		_, err = c.RunParallel(ctx)
		return err
	}

	c.AddAnalysis("returns", experiment.NewReturnsAnalyzer(), experiment.Combine(
		experiment.ReturnsPlotter(saveFile, 50),
		experiment.JSONComparator(saveFile, "returns"),
	))
	c.AddAnalysis("success", experiment.NewSuccessAnalyzer(), experiment.SuccessPlotter(saveFile))
	c.AddAnalysis("coverage", experiment.NewConfigurationCoverage(), experiment.CoveragePlotter(saveFile))
	c.AddAnalysis("visits", grid.NewVisitsAnalyzer(cfg.height, cfg.width), grid.GridPlotComparator(path.Join(saveFile, "visits")))

	_, err = c.Run(ctx)
	return err
}

func LetterCommand() *cobra.Command {
	cfg := letterConfig{}

	cmd := &cobra.Command{
		Use:   "letter",
		Short: "Run the letter world with the counting machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Letter(cmd.Context(), cfg)
		},
	}
	cmd.PersistentFlags().IntVar(&cfg.height, "height", 8, "Height of the grid")
	cmd.PersistentFlags().IntVar(&cfg.width, "width", 8, "Width of the grid")
	cmd.PersistentFlags().IntVar(&cfg.extra, "extra-counters", 4, "Random counter configurations added to the counterfactual samples")
	cmd.PersistentFlags().Uint64Var(&cfg.seed, "seed", 1, "Random seed")
	cmd.PersistentFlags().IntVar(&cfg.bufferSize, "buffer", 100000, "Replay buffer capacity")
	cmd.PersistentFlags().BoolVar(&cfg.parallel, "parallel", false, "Run the experiments concurrently, without analyzers")
	cmd.PersistentFlags().StringVar(&cfg.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address while running")
	return cmd
}
