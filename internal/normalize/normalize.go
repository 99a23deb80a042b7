// Package normalize maps raw magnitude frames to display values in [0, 1].
//
// Pipeline, per frame:
//
//	logv    = log10(max(v, Epsilon))
//	adj     = logv*gain + offset
//	low/high = LowPercentile/HighPercentile of adj over the whole frame
//	norm    = clip((adj-low)/(high-low), 0, 1), or 0 everywhere if high <= low
//	display = norm^Gamma
//
// The stretch adapts to every frame, so the output does not depend on the
// absolute signal level and a few outliers cannot flatten the picture.
package normalize

import (
	"math"
	"slices"

	"github.com/starford/specmon/internal/models"
)

const (
	Epsilon        = 1e-20
	LowPercentile  = 5.0
	HighPercentile = 95.0
	Gamma          = 0.5
)

// Result is the full output of one normalization.
type Result struct {
	Matrix    *models.DisplayMatrix
	Histogram models.Histogram
	// Low and High are the percentile bounds of the adjusted values.
	Low, High float64
	// Degenerate is set when High <= Low and the output was zeroed.
	Degenerate bool
}

// Normalize runs the pipeline and returns the display matrix and its histogram.
func Normalize(f *models.Frame, gain, offset float64) (*models.DisplayMatrix, models.Histogram) {
	res := Apply(f, gain, offset)
	return res.Matrix, res.Histogram
}

// Apply runs the pipeline and also reports the stretch bounds.
func Apply(f *models.Frame, gain, offset float64) *Result {
	flat := f.Flat()
	adj := make([]float64, len(flat))
	for i, v := range flat {
		adj[i] = Compress(v)*gain + offset
	}

	sorted := slices.Clone(adj)
	slices.Sort(sorted)
	low := Percentile(sorted, LowPercentile)
	high := Percentile(sorted, HighPercentile)

	m := models.NewDisplayMatrix(f.Width(), f.Height())
	res := &Result{Matrix: m, Low: low, High: high}

	if !(high > low) {
		res.Degenerate = true
		res.Histogram = Histogram(m.Values)
		return res
	}

	span := high - low
	for i, a := range adj {
		m.Values[i] = math.Pow(clip01((a-low)/span), Gamma)
	}
	res.Histogram = Histogram(m.Values)
	return res
}

// Compress returns log10(max(v, Epsilon)). NaN counts as below Epsilon and
// +Inf is capped at the largest float32 so the result stays finite.
func Compress(v float32) float64 {
	x := float64(v)
	switch {
	case math.IsNaN(x) || x < Epsilon:
		x = Epsilon
	case math.IsInf(x, 1):
		x = math.MaxFloat32
	}
	return math.Log10(x)
}

// Percentile returns the p-th percentile (0..100) of sorted values, linearly
// interpolating between the two closest ranks. sorted must be ascending; an
// empty slice yields 0.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Histogram buckets values in [0, 1] into models.HistogramBins equal-width
// bins. The last bin is closed, so 1.0 lands in it. Bin i holds values with
// i/bins <= v < (i+1)/bins, compared exactly: a value just below an edge
// whose product with bins rounds up to the edge stays in the lower bin.
func Histogram(values []float64) models.Histogram {
	var h models.Histogram
	for _, v := range values {
		idx := int(v * models.HistogramBins)
		if idx > 0 && math.FMA(v, models.HistogramBins, -float64(idx)) < 0 {
			idx--
		}
		if idx >= models.HistogramBins {
			idx = models.HistogramBins - 1
		}
		if idx < 0 {
			idx = 0
		}
		h[idx]++
	}
	return h
}

// clip01 also maps NaN (from overflowing gains) to 0.
func clip01(x float64) float64 {
	if !(x > 0) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
