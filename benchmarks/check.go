package benchmarks

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/zeu5/counting-rm/automaton"
	"github.com/zeu5/counting-rm/grid"
	"gonum.org/v1/gonum/stat/combin"
)

// probing every event subset is only done for small alphabets
const maxProbeAlphabet = 10

// Check compiles the machine in file and writes a summary to out. It returns
// the number of (state, counters, events) combinations for which no
// transition fires.
func Check(out io.Writer, file string, stubRewards []string) (int, error) {
	rewards := grid.OfficeRewards(grid.OfficeWorld(9, 9))
	for _, name := range stubRewards {
		rewards[name] = automaton.ConstantReward(0)
	}
	m, err := automaton.LoadFile(file, rewards)
	if err != nil {
		return 0, err
	}

	formalism := "counting reward machine"
	if m.IsRewardMachine() {
		formalism = "reward machine"
	}
	fmt.Fprintf(out, "machine %s (%s)\n", m.Name(), formalism)
	fmt.Fprintf(out, "  propositions: %v\n", []string(m.Alphabet()))
	fmt.Fprintf(out, "  initial: (%d, %v)\n", m.InitialState(), m.InitialCounters())
	fmt.Fprintf(out, "  states: %v terminal: %v\n", m.States(), m.Terminal())
	for _, u := range m.States() {
		fmt.Fprintf(out, "  state %d\n", u)
		for i, e := range m.Entries(u) {
			fmt.Fprintf(out, "    %d: %-30s -> %d %v\n", i, e.Guard.Expr(), e.Next, e.Delta)
		}
	}
	samples := m.SampleCounterConfigurations()
	fmt.Fprintf(out, "  counterfactual samples: %d\n", len(samples))

	if len(m.Alphabet()) > maxProbeAlphabet {
		fmt.Fprintf(out, "  completeness: skipped, more than %d propositions\n", maxProbeAlphabet)
		return 0, nil
	}
	missing := 0
	for _, events := range eventSubsets(m.Alphabet()) {
		for _, u := range m.States() {
			for _, c := range samples {
				_, ok, err := m.Query(u, c, events)
				if err != nil {
					return missing, err
				}
				if !ok {
					missing++
					fmt.Fprintf(out, "  no transition for (%d, %v) on %s\n", u, c, events)
				}
			}
		}
	}
	fmt.Fprintf(out, "  completeness: %d missing\n", missing)
	return missing, nil
}

func eventSubsets(alphabet automaton.Alphabet) []automaton.Events {
	subsets := []automaton.Events{automaton.NewEvents()}
	for k := 1; k <= len(alphabet); k++ {
		for _, idx := range combin.Combinations(len(alphabet), k) {
			events := automaton.NewEvents()
			for _, i := range idx {
				events.Add(alphabet[i])
			}
			subsets = append(subsets, events)
		}
	}
	return subsets
}

func CheckCommand() *cobra.Command {
	var stubRewards []string
	var strict bool

	cmd := &cobra.Command{
		Use:   "check <file.yaml>",
		Short: "Compile a machine definition and summarize it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			missing, err := Check(cmd.OutOrStdout(), args[0], stubRewards)
			if err != nil {
				return err
			}
			if strict && missing > 0 {
				return fmt.Errorf("%w: %d configurations without a transition", automaton.ErrTableCompleteness, missing)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&stubRewards, "stub-reward", nil, "Reward names resolved to a zero reward")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when a sampled configuration has no transition")
	return cmd
}
