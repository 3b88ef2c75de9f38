package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/i5heu/GoDeadlineBench/internal/harness"
	"github.com/i5heu/GoDeadlineBench/internal/report"
	"github.com/i5heu/GoDeadlineBench/internal/resultstore"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// procsStats holds "5%-avg-min", median, and "5%-avg-max" for each GOMAXPROCS setting.
type procsStats struct {
	x     float64 // category index plus per-strategy offset
	procs int
	harness.Summary
}

// statsPoints implements XYer and YErrorer for procsStats, so we can plot lines + error bars.
type statsPoints []procsStats

func (s statsPoints) Len() int                { return len(s) }
func (s statsPoints) XY(i int) (x, y float64) { return s[i].x, s[i].Median }
func (s statsPoints) YError(i int) (low, high float64) {
	return s[i].Median - s[i].Min5, s[i].Max5 - s[i].Median
}

// categoryTicks implements a categorical X-axis: 0,1,2,... => labels for GOMAXPROCS.
type categoryTicks struct {
	positions []float64
	labels    []string
}

func (ct categoryTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for i, pos := range ct.positions {
		if pos >= min && pos <= max {
			ticks = append(ticks, plot.Tick{Value: pos, Label: ct.labels[i]})
		}
	}
	return ticks
}

// byClock groups median ns/element values: clock -> strategy -> GOMAXPROCS -> values.
type byClock map[string]map[string]map[int][]float64

func group(sessions []report.FullReport) byClock {
	out := make(byClock)
	for _, session := range sessions {
		for _, b := range session.Benchmarks {
			if b.NsPerElem.Median <= 0 {
				continue
			}
			procs := b.GOMAXPROCS
			if procs == 0 {
				procs = session.SystemInfo.SimulatedCPUCount
			}
			if _, ok := out[b.Clock]; !ok {
				out[b.Clock] = make(map[string]map[int][]float64)
			}
			strat := out[b.Clock]
			if _, ok := strat[b.Strategy]; !ok {
				strat[b.Strategy] = make(map[int][]float64)
			}
			strat[b.Strategy][procs] = append(strat[b.Strategy][procs], b.NsPerElem.Median)
		}
	}
	return out
}

// buildStats summarises every GOMAXPROCS setting of one strategy.
func buildStats(procsMap map[int][]float64) []procsStats {
	var out []procsStats
	for procs, vals := range procsMap {
		if len(vals) == 0 {
			continue
		}
		out = append(out, procsStats{procs: procs, Summary: harness.Summarize(vals)})
	}
	return out
}

func loadSessions(jsonFile, dbPath string) ([]report.FullReport, error) {
	if dbPath == "" {
		return report.LoadSessions(jsonFile)
	}
	store, err := resultstore.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Sessions(context.Background())
}

func main() {
	jsonFile := flag.String("jsonfile", "test-results.json", "Path to JSON file containing test sessions")
	dbPath := flag.String("db", "", "Read sessions from this sqlite database instead of the JSON file")
	outputPrefix := flag.String("out", "benchmark_graph", "Output graph image filename prefix")
	flag.Parse()

	sessions, err := loadSessions(*jsonFile, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading sessions: %v\n", err)
		os.Exit(1)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "No sessions found.")
		os.Exit(1)
	}

	for clock, stratMap := range group(sessions) {
		p := newPlot(clock)
		addStrategies(p, stratMap)

		filename := fmt.Sprintf("%s_%s.png", *outputPrefix, clock)
		if err := p.Save(12*vg.Inch, 9*vg.Inch, filename); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving plot for %s clock: %v\n", clock, err)
			continue
		}
		fmt.Printf("Graph for %s clock saved to %s\n", clock, filename)
	}
}

func newPlot(clock string) *plot.Plot {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Deadline strategies (5%%-avg-min / Median / 5%%-avg-max) vs. GOMAXPROCS, %s clock", clock)
	p.X.Label.Text = "GOMAXPROCS"
	p.Y.Label.Text = "Time per element (ns)"
	p.Y.Scale = plot.LinearScale{}

	// Dark theme.
	p.BackgroundColor = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	p.Title.TextStyle.Color = white
	p.X.Label.TextStyle.Color = white
	p.Y.Label.TextStyle.Color = white
	p.X.Color = white
	p.Y.Color = white
	p.X.Tick.Label.Color = white
	p.Y.Tick.Label.Color = white
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.TextStyle.Color = white

	p.Y.Tick.Marker = plot.TickerFunc(func(min, max float64) []plot.Tick {
		// About 9 inches at 30px per tick.
		const nTicks = 648.0 / 30.0
		if min <= 0 {
			min = 1e-9
		}
		start := math.Log10(min)
		step := (math.Log10(max) - start) / nTicks

		var ticks []plot.Tick
		for i := 0.0; i <= nTicks; i++ {
			y := math.Pow(10, start+i*step)
			ticks = append(ticks, plot.Tick{Value: y, Label: formatNs(y)})
		}
		return ticks
	})

	p.Add(plotter.NewGrid())
	return p
}

func addStrategies(p *plot.Plot, stratMap map[string]map[int][]float64) {
	// Union of GOMAXPROCS values across strategies, mapped to category indexes.
	procsSet := make(map[int]struct{})
	for _, data := range stratMap {
		for procs := range data {
			procsSet[procs] = struct{}{}
		}
	}
	var procsValues []int
	for v := range procsSet {
		procsValues = append(procsValues, v)
	}
	sort.Ints(procsValues)

	mapping := make(map[int]float64)
	var positions []float64
	var labels []string
	for i, v := range procsValues {
		mapping[v] = float64(i)
		positions = append(positions, float64(i))
		labels = append(labels, strconv.Itoa(v))
	}
	p.X.Tick.Marker = categoryTicks{positions: positions, labels: labels}

	// Sort strategies alphabetically for consistent legend ordering.
	var names []string
	for name := range stratMap {
		names = append(names, name)
	}
	sort.Strings(names)

	colors := plotutil.SoftColors
	shapes := []draw.GlyphDrawer{
		draw.CircleGlyph{},
		draw.SquareGlyph{},
		draw.TriangleGlyph{},
		draw.CrossGlyph{},
		draw.PlusGlyph{},
	}

	// Slight offset so each strategy is visually separated.
	offsetRange := 0.4
	offsetStep := offsetRange / float64(len(names))
	startOffset := -offsetRange/2 + offsetStep/2

	for i, name := range names {
		stats := buildStats(stratMap[name])
		if len(stats) == 0 {
			continue
		}
		for j := range stats {
			stats[j].x = mapping[stats[j].procs] + startOffset + float64(i)*offsetStep
		}
		sort.Slice(stats, func(a, b int) bool { return stats[a].x < stats[b].x })
		sp := statsPoints(stats)

		line, err := plotter.NewLine(sp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating line: %v\n", err)
			continue
		}
		line.Color = colors[i%len(colors)]

		points, err := plotter.NewScatter(sp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating scatter: %v\n", err)
			continue
		}
		points.GlyphStyle.Radius = vg.Points(5)
		points.Color = colors[i%len(colors)]
		points.Shape = shapes[i%len(shapes)]

		yErrBars, err := plotter.NewYErrorBars(sp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating error bars: %v\n", err)
			continue
		}
		yErrBars.Color = colors[i%len(colors)]

		p.Add(line, points, yErrBars)
		p.Legend.Add(name, line, points)
	}
}

// formatNs nicely formats a nanoseconds value in ns, µs, ms, or s.
func formatNs(ns float64) string {
	switch {
	case ns < 1e3:
		return fmt.Sprintf("%.0fns", ns)
	case ns < 1e6:
		return fmt.Sprintf("%.1fµs", ns/1e3)
	case ns < 1e9:
		return fmt.Sprintf("%.1fms", ns/1e6)
	default:
		return fmt.Sprintf("%.2fs", ns/1e9)
	}
}
