package render

import (
	"bytes"
	"fmt"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/starford/specmon/internal/models"
)

var tracePalette = []drawing.Color{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
	{R: 227, G: 119, B: 194, A: 255},
	{R: 127, G: 127, B: 127, A: 255},
	{R: 188, G: 189, B: 34, A: 255},
	{R: 23, G: 190, B: 207, A: 255},
}

// TraceColor returns the color used for trace i.
func TraceColor(i int) drawing.Color {
	return tracePalette[i%len(tracePalette)]
}

// TraceChart renders the visible traces as a w×h PNG line chart. With no
// visible traces it returns a blank image.
func TraceChart(traces []models.Trace, w, h int) ([]byte, error) {
	var series []chart.Series
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, t := range traces {
		if !t.Visible || len(t.Y) == 0 {
			continue
		}
		xs, ys := seriesValues(t)
		for _, y := range ys {
			lo = min(lo, y)
			hi = max(hi, y)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("row %d", i),
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: TraceColor(i),
				StrokeWidth: 1.5,
			},
		})
	}
	if len(series) == 0 {
		return EncodePNG(blank(w, h))
	}
	if !(hi > lo) {
		lo, hi = lo-1, hi+1
	}

	ch := chart.Chart{
		Width:      w,
		Height:     h,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 24}},
		XAxis:      chart.XAxis{Name: "bin"},
		YAxis:      chart.YAxis{Name: "magnitude", Range: &chart.ContinuousRange{Min: lo, Max: hi}},
		Series:     series,
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render trace chart: %w", err)
	}
	return buf.Bytes(), nil
}

// seriesValues converts a trace to chart values. Non-finite samples are drawn
// as 0, and a single-bin trace is widened to two points since a continuous
// series needs an x range.
func seriesValues(t models.Trace) ([]float64, []float64) {
	xs := make([]float64, len(t.Y))
	ys := make([]float64, len(t.Y))
	for k, y := range t.Y {
		xs[k] = float64(t.X[k])
		v := float64(y)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		ys[k] = v
	}
	if len(xs) == 1 {
		xs = append(xs, xs[0]+1)
		ys = append(ys, ys[0])
	}
	return xs, ys
}
