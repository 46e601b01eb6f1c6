// Package render draws Newton plot data as PNG charts.
package render

import (
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/njchilds90/gonewton"
)

// Options sizes the chart.
type Options struct {
	Width  int
	Height int
	Title  string
}

// pointStyle renders points only, without a connecting line.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    4,
		DotColor:    col,
	}
}

func xs(pts []gonewton.Point) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.X
	}
	return out
}

// ys clamps into the y window so off-scale samples stay on the canvas edge.
func ys(pts []gonewton.Point, lo, hi float64) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		switch {
		case p.Y < lo:
			out[i] = lo
		case p.Y > hi:
			out[i] = hi
		default:
			out[i] = p.Y
		}
	}
	return out
}

// Chart builds the go-chart description of one plot frame.
func Chart(data *gonewton.PlotData, opts Options) chart.Chart {
	o := data.Options
	title := opts.Title
	if title == "" {
		title = "Newton's Method"
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "y = 0",
			XValues: []float64{o.XMin, o.XMax},
			YValues: []float64{0, 0},
			Style:   chart.Style{StrokeColor: chart.ColorAlternateGray, StrokeWidth: 1},
		},
	}
	for i, run := range data.CurveRuns() {
		if len(run) < 2 {
			continue
		}
		name := "f(x) = " + data.Function
		if i > 0 {
			name = ""
		}
		series = append(series, chart.ContinuousSeries{
			Name:    name,
			XValues: xs(run),
			YValues: ys(run, o.YMin, o.YMax),
			Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2},
		})
	}
	for _, t := range data.Tangents {
		series = append(series, chart.ContinuousSeries{
			XValues: xs(t.Points),
			YValues: ys(t.Points, o.YMin, o.YMax),
			Style: chart.Style{
				StrokeColor:     chart.ColorRed,
				StrokeWidth:     1,
				StrokeDashArray: []float64{5.0, 5.0},
			},
		})
	}
	if len(data.Markers) > 0 {
		series = append(series, chart.ContinuousSeries{
			Name:    "iterates",
			XValues: xs(data.Markers),
			YValues: ys(data.Markers, o.YMin, o.YMax),
			Style:   pointStyle(chart.ColorBlack),
		})
	}

	ch := chart.Chart{
		Title:      title,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "x", Range: &chart.ContinuousRange{Min: o.XMin, Max: o.XMax}},
		YAxis:      chart.YAxis{Name: "f(x)", Range: &chart.ContinuousRange{Min: o.YMin, Max: o.YMax}},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch
}

// PNG renders data as a PNG image into w.
func PNG(w io.Writer, data *gonewton.PlotData, opts Options) error {
	ch := Chart(data, opts)
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
