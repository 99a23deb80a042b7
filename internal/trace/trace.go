// Package trace projects frame rows into line series for the trace view.
package trace

import "github.com/starford/specmon/internal/models"

// DefaultMaxTraces is the trace capacity used when none is configured.
const DefaultMaxTraces = 20

// Project returns exactly maxTraces traces. Rows [0, min(height, maxTraces))
// are visible with X = 0..width-1 and Y = the raw row; the remaining slots are
// hidden. Rows past maxTraces are not shown.
func Project(f *models.Frame, maxTraces int) []models.Trace {
	if maxTraces <= 0 {
		return nil
	}

	out := Hidden(maxTraces)
	xs := columns(f.Width())
	rows := min(f.Height(), maxTraces)
	for i := 0; i < rows; i++ {
		out[i] = models.Trace{X: xs, Y: f.Row(i), Visible: true}
	}
	return out
}

// Hidden returns maxTraces empty, invisible traces: the placeholder before
// the first frame arrives.
func Hidden(maxTraces int) []models.Trace {
	if maxTraces <= 0 {
		return nil
	}
	out := make([]models.Trace, maxTraces)
	for i := range out {
		out[i] = models.Trace{X: []int{}, Y: []float32{}}
	}
	return out
}

// VisibleCount returns how many traces are visible.
func VisibleCount(traces []models.Trace) int {
	n := 0
	for _, t := range traces {
		if t.Visible {
			n++
		}
	}
	return n
}

// columns is shared by all visible traces of one projection; callers must
// not modify it.
func columns(width int) []int {
	xs := make([]int, width)
	for j := range xs {
		xs[j] = j
	}
	return xs
}
