package benchmarks

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	episodes int
	horizon  int
	saveFile string
	runs     int
	logLevel string
)

func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "crm",
		Short: "Counting reward machine experiments",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
		SilenceUsage: true,
	}
	rootCommand.PersistentFlags().IntVarP(&episodes, "episodes", "e", 1000, "Number of episodes to run")
	rootCommand.PersistentFlags().IntVar(&horizon, "horizon", 100, "Horizon of each episode")
	rootCommand.PersistentFlags().StringVarP(&saveFile, "save", "s", "results", "Save the result data in the specified folder")
	rootCommand.PersistentFlags().IntVar(&runs, "runs", 1, "Number of experiment runs")
	rootCommand.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	// adding the subcommands here
	rootCommand.AddCommand(LetterCommand())
	rootCommand.AddCommand(OfficeCommand())
	rootCommand.AddCommand(CheckCommand())
	rootCommand.AddCommand(ServeCommand())
	return rootCommand
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}
