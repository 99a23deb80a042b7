package models

// HistogramBins is the number of equal-width buckets over [0, 1].
const HistogramBins = 20

// DisplayMatrix is a height×width matrix of values in [0, 1], row-major.
type DisplayMatrix struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Values []float64 `json:"values"`
}

// NewDisplayMatrix returns a zero-filled matrix.
func NewDisplayMatrix(width, height int) *DisplayMatrix {
	return &DisplayMatrix{
		Width:  width,
		Height: height,
		Values: make([]float64, width*height),
	}
}

// At returns the value at row i, column j.
func (m *DisplayMatrix) At(i, j int) float64 {
	return m.Values[i*m.Width+j]
}

// Row returns row i.
func (m *DisplayMatrix) Row(i int) []float64 {
	start := i * m.Width
	return m.Values[start : start+m.Width]
}

// Histogram holds per-bucket counts of a DisplayMatrix.
type Histogram [HistogramBins]int

// Total returns the sum of all bucket counts.
func (h Histogram) Total() int {
	n := 0
	for _, c := range h {
		n += c
	}
	return n
}

// Trace is one line series of the trace view.
type Trace struct {
	X       []int     `json:"x"`
	Y       []float32 `json:"y"`
	Visible bool      `json:"visible"`
}
