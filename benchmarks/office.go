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

// Office runs the office world reward machine. Reward machines go through the
// same resolution as counting machines with a single zero counter.
func Office(ctx context.Context, height, width int, seed uint64, recordTraces bool) error {
	logger := slog.Default()
	collector, stop := startMetrics("", logger)
	defer stop()

	c, err := experiment.NewComparison(&experiment.ComparisonConfig{
		Runs:                   runs,
		Episodes:               episodes,
		Horizon:                horizon,
		RecordPath:             saveFile,
		ConsecutiveErrorsAbort: 10,
		RecordTraces:           recordTraces,
		Progress:               true,
		Logger:                 logger,
		Metrics:                collector,
	})
	if err != nil {
		return err
	}

	g := grid.OfficeWorld(height, width)
	m, err := grid.OfficeMachine(g)
	if err != nil {
		return fmt.Errorf("building office machine: %w", err)
	}
	cp := crossproduct.New(g, m, grid.LetterLabels(g),
		crossproduct.WithMaxSteps(horizon),
		crossproduct.WithLogger(logger.With("experiment", "Random-RM")),
		crossproduct.WithMetrics(collector),
	)
	c.AddExperiment(experiment.NewExperiment("Random-RM", rl.NewSeededRandomPolicy(seed), cp))

	c.AddAnalysis("returns", experiment.NewReturnsAnalyzer(), experiment.ReturnsPlotter(saveFile, 50))
	c.AddAnalysis("success", experiment.NewSuccessAnalyzer(), experiment.Combine(
		experiment.SuccessPlotter(saveFile),
		experiment.JSONComparator(saveFile, "success"),
	))
	c.AddAnalysis("visits", grid.NewVisitsAnalyzer(height, width), grid.GridPlotComparator(path.Join(saveFile, "visits")))

	_, err = c.Run(ctx)
	return err
}

func OfficeCommand() *cobra.Command {
	var height int
	var width int
	var seed uint64
	var recordTraces bool

	cmd := &cobra.Command{
		Use:   "office",
		Short: "Run the office world with its reward machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Office(cmd.Context(), height, width, seed, recordTraces)
		},
	}
	cmd.PersistentFlags().IntVar(&height, "height", 9, "Height of the grid")
	cmd.PersistentFlags().IntVar(&width, "width", 9, "Width of the grid")
	cmd.PersistentFlags().Uint64Var(&seed, "seed", 1, "Random seed")
	cmd.PersistentFlags().BoolVar(&recordTraces, "traces", false, "Record every episode trace as json lines")
	return cmd
}
