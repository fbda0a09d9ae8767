package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/wall.align/internal/align/l5guidance"
)

// ErrNoResults is returned when there is nothing to chart.
var ErrNoResults = errors.New("report: no results")

// Series names, shared by both renderers.
const (
	SeriesDX     = "ΔX"
	SeriesDY     = "ΔY"
	SeriesDScale = "ΔScale×100"
	SeriesDRot   = "ΔRotation (°)"
	SeriesState  = "state"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// stateLevel maps a state onto the state chart's y axis.
var stateLevel = map[l5guidance.State]int{
	l5guidance.StateSearching: 0,
	l5guidance.StateLost:      1,
	l5guidance.StateTracking:  2,
	l5guidance.StateAligned:   3,
}

type series struct {
	name   string
	values func(l5guidance.DeviationVector) float64
}

var deviationSeries = []series{
	{SeriesDX, func(d l5guidance.DeviationVector) float64 { return d.DX }},
	{SeriesDY, func(d l5guidance.DeviationVector) float64 { return d.DY }},
	{SeriesDScale, func(d l5guidance.DeviationVector) float64 { return d.DScale * 100 }},
	{SeriesDRot, func(d l5guidance.DeviationVector) float64 { return d.DRotationDeg }},
}

// palette returns n evenly spaced hues.
func palette(n int) []colorful.Color {
	out := make([]colorful.Color, n)
	for i := range out {
		out[i] = colorful.Hsl(360*float64(i)/float64(n), 0.7, 0.5)
	}
	return out
}

func title(results []l5guidance.GuidanceResult) (string, string) {
	first := results[0]
	s := Summarise(results)
	sub := fmt.Sprintf("session=%s item=%s frames=%d final=%s", first.SessionID, first.ItemID, s.Frames, s.FinalState)
	return "Alignment convergence", sub
}

// WriteConvergenceHTML renders the deviation components per frame and
// the state per frame as an HTML page. Frames without a deviation are
// left as gaps.
func WriteConvergenceHTML(w io.Writer, results []l5guidance.GuidanceResult) error {
	if len(results) == 0 {
		return ErrNoResults
	}
	heading, sub := title(results)

	x := make([]string, len(results))
	for i, r := range results {
		x[i] = strconv.FormatUint(r.FrameSeq, 10)
	}

	colors := palette(len(deviationSeries))
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: heading, Width: "100%", Height: "480px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: heading, Subtitle: sub}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "deviation", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(x)
	for i, s := range deviationSeries {
		data := make([]opts.LineData, len(results))
		for j, r := range results {
			if r.HasDeviation {
				data[j] = opts.LineData{Value: s.values(r.Deviation)}
			} else {
				data[j] = opts.LineData{Value: "-"}
			}
		}
		line.AddSeries(s.name, data, charts.WithItemStyleOpts(opts.ItemStyle{Color: colors[i].Hex()}))
	}

	states := charts.NewLine()
	states.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "240px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "State", Subtitle: "0=SEARCHING 1=LOST 2=TRACKING 3=ALIGNED"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 3}),
	)
	levels := make([]opts.LineData, len(results))
	for i, r := range results {
		levels[i] = opts.LineData{Value: stateLevel[r.State], Name: string(r.State)}
	}
	states.SetXAxis(x).AddSeries(SeriesState, levels)

	page := components.NewPage()
	page.PageTitle = heading
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(line, states)
	return page.Render(w)
}

// WriteConvergencePNG saves a static deviation chart to path.
func WriteConvergencePNG(path string, results []l5guidance.GuidanceResult) error {
	if len(results) == 0 {
		return ErrNoResults
	}
	heading, sub := title(results)

	p := plot.New()
	p.Title.Text = heading + " (" + sub + ")"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "deviation"
	p.Add(plotter.NewGrid())

	colors := palette(len(deviationSeries))
	for i, s := range deviationSeries {
		pts := make(plotter.XYs, 0, len(results))
		for _, r := range results {
			if r.HasDeviation {
				pts = append(pts, plotter.XY{X: float64(r.FrameSeq), Y: s.values(r.Deviation)})
			}
		}
		if len(pts) == 0 {
			continue
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		l.Color = color.Color(colors[i])
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(s.name, l)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
