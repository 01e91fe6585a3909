package grid

import (
	"path"
	"strconv"

	"github.com/zeu5/counting-rm/experiment"
	"github.com/zeu5/counting-rm/rl"
	"github.com/zeu5/counting-rm/util"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// GridDataSet counts the visits to every cell
type GridDataSet struct {
	Visits map[int]map[int]int
	Height int
	Width  int
}

var _ plotter.GridXYZ = &GridDataSet{}

func (g *GridDataSet) Dims() (int, int) {
	return g.Width, g.Height
}

func (g *GridDataSet) Z(j, i int) float64 {
	return float64(g.Visits[i][j])
}

func (g *GridDataSet) X(j int) float64 {
	return float64(j)
}

func (g *GridDataSet) Y(i int) float64 {
	return float64(i)
}

func (g *GridDataSet) Min() float64 {
	return 0.0
}

func (g *GridDataSet) Max() float64 {
	max := 0
	for _, vals := range g.Visits {
		for _, count := range vals {
			if count > max {
				max = count
			}
		}
	}
	return float64(max)
}

func (g *GridDataSet) visit(p Position) {
	if _, ok := g.Visits[p.I]; !ok {
		g.Visits[p.I] = make(map[int]int)
	}
	g.Visits[p.I][p.J] += 1
}

// VisitsAnalyzer reads the ground position from the fused observations of a trace
type VisitsAnalyzer struct {
	dataSet *GridDataSet
}

var _ experiment.Analyzer = &VisitsAnalyzer{}

func NewVisitsAnalyzer(height, width int) *VisitsAnalyzer {
	return &VisitsAnalyzer{
		dataSet: &GridDataSet{
			Visits: make(map[int]map[int]int),
			Height: height,
			Width:  width,
		},
	}
}

func (v *VisitsAnalyzer) Analyze(_, _ int, _ string, trace *rl.Trace) {
	for _, e := range trace.Experiences() {
		if pos, ok := PositionOf(e.NextObs); ok {
			v.dataSet.visit(pos)
		}
	}
}

func (v *VisitsAnalyzer) DataSet() experiment.DataSet {
	return v.dataSet
}

func (v *VisitsAnalyzer) Reset() {
	v.dataSet = &GridDataSet{
		Visits: make(map[int]map[int]int),
		Height: v.dataSet.Height,
		Width:  v.dataSet.Width,
	}
}

// GridPlotComparator saves the visits of every experiment as json and as a heat map
func GridPlotComparator(figPath string) experiment.Comparator {
	util.EnsureDir(figPath)
	return func(run, _ int, s []string, ds []experiment.DataSet) {
		for i := 0; i < len(s); i++ {
			name := s[i]
			dataSet, ok := ds[i].(*GridDataSet)
			if !ok {
				continue
			}
			prefix := path.Join(figPath, strconv.Itoa(run)+"_"+name)

			util.WriteJSON(prefix+"_visits.json", dataSet)

			if dataSet.Max() == 0 {
				continue
			}
			p := plot.New()
			p.Title.Text = name
			p.Add(plotter.NewHeatMap(dataSet, palette.Heat(20, 1)))
			p.Save(4*vg.Inch, 4*vg.Inch, prefix+"_visits.png")
		}
	}
}
