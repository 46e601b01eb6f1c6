package gonewton

import "fmt"

// ============================================================
// Plot data
// ============================================================

// PlotOptions fixes the sampled domain and tangent geometry.
type PlotOptions struct {
	XMin             float64 `json:"x_min" yaml:"x_min"`
	XMax             float64 `json:"x_max" yaml:"x_max"`
	Samples          int     `json:"samples" yaml:"samples"`
	TangentHalfWidth float64 `json:"tangent_half_width" yaml:"tangent_half_width"`
	TangentSamples   int     `json:"tangent_samples" yaml:"tangent_samples"`
	YMin             float64 `json:"y_min" yaml:"y_min"`
	YMax             float64 `json:"y_max" yaml:"y_max"`
}

func DefaultPlotOptions() PlotOptions {
	return PlotOptions{
		XMin:             -2,
		XMax:             2,
		Samples:          400,
		TangentHalfWidth: 0.5,
		TangentSamples:   10,
		YMin:             -10,
		YMax:             10,
	}
}

func (o PlotOptions) Validate() error {
	switch {
	case !(o.XMax > o.XMin):
		return fmt.Errorf("plot: x_max (%g) must exceed x_min (%g)", o.XMax, o.XMin)
	case !(o.YMax > o.YMin):
		return fmt.Errorf("plot: y_max (%g) must exceed y_min (%g)", o.YMax, o.YMin)
	case o.Samples < 2:
		return fmt.Errorf("plot: need at least 2 samples, got %d", o.Samples)
	case o.TangentSamples < 2:
		return fmt.Errorf("plot: need at least 2 tangent samples, got %d", o.TangentSamples)
	case !(o.TangentHalfWidth > 0):
		return fmt.Errorf("plot: tangent half width must be positive")
	}
	return nil
}

// Tangent is the local linearisation drawn at a visited point.
type Tangent struct {
	At     Point   `json:"at"`
	Slope  float64 `json:"slope"`
	Points []Point `json:"points"`
}

// PlotData is everything a presentation layer needs to draw one frame.
type PlotData struct {
	Function string      `json:"f"`
	Options  PlotOptions `json:"options"`
	// Curve holds the samples that evaluated; Index maps each back to its
	// sample slot so renderers can break the line across dropped samples.
	Curve    []Point   `json:"curve"`
	Index    []int     `json:"-"`
	Markers  []Point   `json:"markers"`
	Tangents []Tangent `json:"tangents"`
}

// linspace mirrors numpy.linspace with both endpoints included.
func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	out[n-1] = hi
	return out
}

// BuildPlot samples f over the configured domain and lays out markers and
// tangents for history. It never mutates history. Only an unparseable f is an
// error; samples that fail to evaluate are dropped, and an unusable df drops
// the tangents but keeps the curve and markers.
func BuildPlot(fText, dfText string, history []Point, opts PlotOptions) (*PlotData, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	f, err := Compile(fText)
	if err != nil {
		return nil, err
	}
	df, dfErr := CompileDerivative(f, dfText)

	data := &PlotData{
		Function: fText,
		Options:  opts,
		Markers:  append([]Point{}, history...),
		Tangents: []Tangent{},
	}
	for i, x := range linspace(opts.XMin, opts.XMax, opts.Samples) {
		y, err := f.Eval(x)
		if err != nil {
			continue
		}
		data.Curve = append(data.Curve, Point{X: x, Y: y})
		data.Index = append(data.Index, i)
	}

	if dfErr != nil {
		return data, nil
	}
	// The last point has not been stepped from yet, so it gets no tangent.
	for i := 0; i+1 < len(history); i++ {
		p := history[i]
		if p.Y == 0 {
			continue
		}
		slope, err := df.Eval(p.X)
		if err != nil {
			continue
		}
		t := Tangent{At: p, Slope: slope}
		for _, x := range linspace(p.X-opts.TangentHalfWidth, p.X+opts.TangentHalfWidth, opts.TangentSamples) {
			t.Points = append(t.Points, Point{X: x, Y: slope*(x-p.X) + p.Y})
		}
		data.Tangents = append(data.Tangents, t)
	}
	return data, nil
}

// CurveRuns splits the curve into runs of consecutive samples, so that a
// line is never drawn across a gap left by a dropped sample.
func (d *PlotData) CurveRuns() [][]Point {
	if len(d.Curve) == 0 {
		return nil
	}
	var runs [][]Point
	start := 0
	for i := 1; i <= len(d.Curve); i++ {
		if i == len(d.Curve) || d.Index[i] != d.Index[i-1]+1 {
			runs = append(runs, d.Curve[start:i])
			start = i
		}
	}
	return runs
}
