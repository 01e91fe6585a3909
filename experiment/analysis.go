package experiment

import (
	"fmt"
	"path"
	"strconv"

	"github.com/zeu5/counting-rm/rl"
	"github.com/zeu5/counting-rm/util"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Generic Dataset that contains information after processing the traces
type DataSet interface{}

// Analyzer compresses the information in the traces to a DataSet
type Analyzer interface {
	// Run, episode, experiment, trace
	Analyze(int, int, string, *rl.Trace)
	// Resulting dataset
	DataSet() DataSet
	// Reset the analyzer
	Reset()
}

// Comparator differentiates between different datasets with associated names
// run, total episodes, experiment names, datasets
type Comparator func(int, int, []string, []DataSet)

func NoopComparator() Comparator {
	return func(_, _ int, _ []string, _ []DataSet) {}
}

// ReturnsAnalyzer records the undiscounted return of every episode
type ReturnsAnalyzer struct {
	returns []float64
}

var _ Analyzer = &ReturnsAnalyzer{}

func NewReturnsAnalyzer() *ReturnsAnalyzer {
	return &ReturnsAnalyzer{returns: make([]float64, 0)}
}

func (r *ReturnsAnalyzer) Analyze(_, _ int, _ string, t *rl.Trace) {
	r.returns = append(r.returns, t.Return())
}

func (r *ReturnsAnalyzer) DataSet() DataSet {
	out := make([]float64, len(r.returns))
	copy(out, r.returns)
	return out
}

func (r *ReturnsAnalyzer) Reset() {
	r.returns = make([]float64, 0)
}

// SuccessAnalyzer records the running fraction of episodes ending in a terminal machine state
type SuccessAnalyzer struct {
	episodes   int
	successes  int
	cumulative []float64
}

var _ Analyzer = &SuccessAnalyzer{}

func NewSuccessAnalyzer() *SuccessAnalyzer {
	return &SuccessAnalyzer{cumulative: make([]float64, 0)}
}

func (s *SuccessAnalyzer) Analyze(_, _ int, _ string, t *rl.Trace) {
	s.episodes += 1
	if t.Terminated() {
		s.successes += 1
	}
	s.cumulative = append(s.cumulative, float64(s.successes)/float64(s.episodes))
}

func (s *SuccessAnalyzer) DataSet() DataSet {
	out := make([]float64, len(s.cumulative))
	copy(out, s.cumulative)
	return out
}

func (s *SuccessAnalyzer) Reset() {
	s.episodes = 0
	s.successes = 0
	s.cumulative = make([]float64, 0)
}

// ConfigurationCoverage counts the distinct machine configurations (u, c) visited
// after every episode
type ConfigurationCoverage struct {
	visited map[string]bool
	counts  []float64
}

var _ Analyzer = &ConfigurationCoverage{}

func NewConfigurationCoverage() *ConfigurationCoverage {
	return &ConfigurationCoverage{
		visited: make(map[string]bool),
		counts:  make([]float64, 0),
	}
}

func (c *ConfigurationCoverage) Analyze(_, _ int, _ string, t *rl.Trace) {
	for _, e := range t.Experiences() {
		c.visited[configurationKey(e.MachineState, e.Counters)] = true
		c.visited[configurationKey(e.NextMachineState, e.NextCounters)] = true
	}
	c.counts = append(c.counts, float64(len(c.visited)))
}

func (c *ConfigurationCoverage) DataSet() DataSet {
	out := make([]float64, len(c.counts))
	copy(out, c.counts)
	return out
}

func (c *ConfigurationCoverage) Reset() {
	c.visited = make(map[string]bool)
	c.counts = make([]float64, 0)
}

func configurationKey(u int, c []int) string {
	return fmt.Sprintf("%d:%v", u, c)
}

// Smooth replaces every value with the mean of the window ending at it
func Smooth(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	for i := range values {
		from := i - window + 1
		if from < 0 {
			from = 0
		}
		out[i] = stat.Mean(values[from:i+1], nil)
	}
	return out
}

// CurvePlotter draws one line per experiment from []float64 datasets
func CurvePlotter(plotPath, suffix, yLabel string, window int) Comparator {
	util.EnsureDir(plotPath)
	return func(run, _ int, names []string, ds []DataSet) {
		p := plot.New()
		p.Title.Text = "Comparison"
		p.X.Label.Text = "Episode"
		p.Y.Label.Text = yLabel
		for i := 0; i < len(names); i++ {
			values, ok := ds[i].([]float64)
			if !ok || len(values) == 0 {
				continue
			}
			smoothed := Smooth(values, window)
			points := make(plotter.XYs, len(smoothed))
			for j, v := range smoothed {
				points[j] = plotter.XY{
					X: float64(j),
					Y: v,
				}
			}
			line, err := plotter.NewLine(points)
			if err != nil {
				continue
			}
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(names[i], line)
			fmt.Printf("%s for benchmark %s: mean %.3f, last %.3f\n", yLabel, names[i], stat.Mean(values, nil), smoothed[len(smoothed)-1])
		}
		p.Save(8*vg.Inch, 8*vg.Inch, path.Join(plotPath, strconv.Itoa(run)+"_"+suffix+".png"))
	}
}

func ReturnsPlotter(plotPath string, window int) Comparator {
	return CurvePlotter(plotPath, "returns", "Return", window)
}

func SuccessPlotter(plotPath string) Comparator {
	return CurvePlotter(plotPath, "success", "Success rate", 1)
}

func CoveragePlotter(plotPath string) Comparator {
	return CurvePlotter(plotPath, "coverage", "Configurations covered", 1)
}

// JSONComparator writes every dataset to <run>_<name>_<suffix>.json
func JSONComparator(savePath, suffix string) Comparator {
	util.EnsureDir(savePath)
	return func(run, _ int, names []string, ds []DataSet) {
		for i := 0; i < len(names); i++ {
			util.WriteJSON(path.Join(savePath, strconv.Itoa(run)+"_"+names[i]+"_"+suffix+".json"), ds[i])
		}
	}
}

// Combine calls every comparator in turn
func Combine(comparators ...Comparator) Comparator {
	return func(run, episodes int, names []string, ds []DataSet) {
		for _, c := range comparators {
			c(run, episodes, names, ds)
		}
	}
}
