package gonewton_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/gonewton"
)

// ============================================================
// BuildPlot tests
// ============================================================

func TestBuildPlot_CurveSpansDomain(t *testing.T) {
	data, err := gonewton.BuildPlot("x**2 - 2", "2*x", nil, gonewton.DefaultPlotOptions())
	require.NoError(t, err)

	require.Len(t, data.Curve, 400)
	assert.Equal(t, -2.0, data.Curve[0].X)
	assert.Equal(t, 2.0, data.Curve[399].X)
	assert.Equal(t, 2.0, data.Curve[0].Y)
	assert.Empty(t, data.Markers)
	assert.Empty(t, data.Tangents)
	assert.Len(t, data.CurveRuns(), 1)
}

func TestBuildPlot_TangentsForEveryPointButTheLast(t *testing.T) {
	s := gonewton.NewSession("t")
	p := sqrt2Params()
	s.Advance(p)
	s.Advance(p)
	s.Advance(p)
	require.Len(t, s.History, 4)

	opts := gonewton.DefaultPlotOptions()
	data, err := gonewton.BuildPlot(p.Function, p.Derivative, s.History, opts)
	require.NoError(t, err)

	assert.Equal(t, s.History, data.Markers)
	require.Len(t, data.Tangents, 3)

	first := data.Tangents[0]
	assert.Equal(t, s.History[0], first.At)
	assert.Equal(t, -3.0, first.Slope)
	require.Len(t, first.Points, opts.TangentSamples)
	assert.InDelta(t, -2.0, first.Points[0].X, 1e-12)
	assert.InDelta(t, -1.0, first.Points[len(first.Points)-1].X, 1e-12)

	for _, tg := range data.Tangents {
		for _, pt := range tg.Points {
			assert.InDelta(t, tg.Slope*(pt.X-tg.At.X)+tg.At.Y, pt.Y, 1e-12)
		}
	}
}

func TestBuildPlot_SkipsTangentAtExactRoot(t *testing.T) {
	history := []gonewton.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}}
	data, err := gonewton.BuildPlot("x", "1", history, gonewton.DefaultPlotOptions())
	require.NoError(t, err)

	require.Len(t, data.Tangents, 1)
	assert.Equal(t, 1.0, data.Tangents[0].At.X)
	assert.Len(t, data.Markers, 3)
}

func TestBuildPlot_DoesNotMutateHistory(t *testing.T) {
	history := []gonewton.Point{{X: -1.5, Y: 0.25}, {X: -1.4, Y: -0.04}}
	before := append([]gonewton.Point(nil), history...)

	data, err := gonewton.BuildPlot("x**2 - 2", "", history, gonewton.DefaultPlotOptions())
	require.NoError(t, err)
	data.Markers[0].X = 99

	assert.Equal(t, before, history)
}

func TestBuildPlot_DropsFailedSamples(t *testing.T) {
	data, err := gonewton.BuildPlot("log(x)", "", nil, gonewton.DefaultPlotOptions())
	require.NoError(t, err)

	require.Len(t, data.Curve, 200)
	for _, pt := range data.Curve {
		assert.Greater(t, pt.X, 0.0)
	}
	assert.Len(t, data.CurveRuns(), 1)
}

func TestBuildPlot_CurveRunsSplitAtGaps(t *testing.T) {
	data, err := gonewton.BuildPlot("log(x**2 - 1)", "", nil, gonewton.DefaultPlotOptions())
	require.NoError(t, err)

	runs := data.CurveRuns()
	require.Len(t, runs, 2)
	assert.Equal(t, len(data.Curve), len(runs[0])+len(runs[1]))
	assert.Less(t, runs[0][len(runs[0])-1].X, -1.0)
	assert.Greater(t, runs[1][0].X, 1.0)
}

func TestBuildPlot_NothingEvaluates(t *testing.T) {
	data, err := gonewton.BuildPlot("sqrt(x - 10)", "", nil, gonewton.DefaultPlotOptions())
	require.NoError(t, err)
	assert.Empty(t, data.Curve)
	assert.Nil(t, data.CurveRuns())
}

func TestBuildPlot_BadDerivativeKeepsCurveAndMarkers(t *testing.T) {
	s := gonewton.NewSession("t")
	p := sqrt2Params()
	s.Advance(p)
	s.Advance(p)

	for _, df := range []string{"2*", "open(x)"} {
		data, err := gonewton.BuildPlot(p.Function, df, s.History, gonewton.DefaultPlotOptions())
		require.NoError(t, err, df)
		assert.Len(t, data.Curve, 400, df)
		assert.Equal(t, s.History, data.Markers, df)
		assert.Empty(t, data.Tangents, df)
	}
}

func TestBuildPlot_Errors(t *testing.T) {
	opts := gonewton.DefaultPlotOptions()

	_, err := gonewton.BuildPlot("x +", "", nil, opts)
	assert.True(t, errors.Is(err, gonewton.ErrExpressionSyntax), "got %v", err)

	bad := opts
	bad.XMax = bad.XMin
	_, err = gonewton.BuildPlot("x", "1", nil, bad)
	assert.Error(t, err)

	bad = opts
	bad.Samples = 1
	_, err = gonewton.BuildPlot("x", "1", nil, bad)
	assert.Error(t, err)
}

func TestPlotOptions_Defaults(t *testing.T) {
	opts := gonewton.DefaultPlotOptions()
	assert.NoError(t, opts.Validate())
	assert.Equal(t, gonewton.PlotOptions{
		XMin: -2, XMax: 2, Samples: 400,
		TangentHalfWidth: 0.5, TangentSamples: 10,
		YMin: -10, YMax: 10,
	}, opts)
}
