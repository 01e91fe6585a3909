package benchmarks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/zeu5/counting-rm/automaton"
	"github.com/zeu5/counting-rm/grid"
	"github.com/zeu5/counting-rm/server"
)

// Serve exposes the letter and office machines, plus any machine files, over HTTP
func Serve(ctx context.Context, addr string, files []string) error {
	logger := slog.Default()
	s := server.NewServer(addr, logger, prometheus.DefaultGatherer)

	letterWorld := grid.LetterWorld(8, 8)
	letter, err := grid.LetterMachine(letterWorld, 4, horizon, 1)
	if err != nil {
		return err
	}
	s.Register(letter)

	officeWorld := grid.OfficeWorld(9, 9)
	office, err := grid.OfficeMachine(officeWorld)
	if err != nil {
		return err
	}
	s.Register(office)

	rewards := grid.OfficeRewards(officeWorld)
	for _, f := range files {
		m, err := automaton.LoadFile(f, rewards)
		if err != nil {
			return fmt.Errorf("serving %s: %w", f, err)
		}
		s.Register(m)
	}
	return s.Run(ctx)
}

func ServeCommand() *cobra.Command {
	var addr string
	var files []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the machines over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Serve(cmd.Context(), addr, files)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Address to listen on")
	cmd.Flags().StringSliceVarP(&files, "machine", "m", nil, "Additional YAML machine definitions")
	return cmd
}
