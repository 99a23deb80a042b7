// Package models defines the domain types exchanged between specmon components.
package models

import (
	"fmt"
	"math"
	"time"

	"github.com/starford/specmon/internal/apperr"
)

// DimensionDescriptor is the parsed "<width> <height>" record that tells the
// reader how to interpret the binary payload.
type DimensionDescriptor struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MaxSamples bounds width*height of any frame (2 GiB of float32).
const MaxSamples = math.MaxInt32 / 4

// Count returns the number of samples the descriptor announces.
func (d DimensionDescriptor) Count() int {
	return d.Width * d.Height
}

// CheckShape reports whether width×height is a frame shape specmon accepts:
// both positive and the product no larger than MaxSamples. The product is
// never computed before the bound is checked, so it cannot overflow.
func CheckShape(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", apperr.ErrMalformedDescriptor, width, height)
	}
	if width > MaxSamples/height {
		return fmt.Errorf("%w: %dx%d exceeds %d samples", apperr.ErrMalformedDescriptor, width, height, MaxSamples)
	}
	return nil
}

// Frame is one validated width×height matrix of float32 samples, row-major.
//
// A Frame is immutable once constructed: callers must not modify the slices
// returned by Row or Flat.
type Frame struct {
	width   int
	height  int
	samples []float32

	// Seq is assigned by the reader; monotonically increasing per reader.
	Seq uint64
	// ReadAt is when the artifacts were read.
	ReadAt time.Time
	// Checksum is a short digest of the shape and raw payload bytes.
	Checksum string
}

// NewFrame builds a Frame over samples without copying. len(samples) must
// equal width*height exactly; anything else is rejected.
func NewFrame(width, height int, samples []float32) (*Frame, error) {
	if err := CheckShape(width, height); err != nil {
		return nil, err
	}
	if len(samples) != width*height {
		return nil, fmt.Errorf("%w: have %d samples, want %d×%d=%d",
			apperr.ErrSizeMismatch, len(samples), width, height, width*height)
	}
	return &Frame{width: width, height: height, samples: samples}, nil
}

// Width returns the number of columns.
func (f *Frame) Width() int { return f.width }

// Height returns the number of rows.
func (f *Frame) Height() int { return f.height }

// Len returns Width*Height.
func (f *Frame) Len() int { return len(f.samples) }

// At returns the sample at row i, column j.
func (f *Frame) At(i, j int) float32 {
	return f.samples[i*f.width+j]
}

// Row returns row i, spanning flat elements [i*width, i*width+width).
func (f *Frame) Row(i int) []float32 {
	start := i * f.width
	end := start + f.width
	return f.samples[start:end:end]
}

// Flat returns the row-major sample buffer.
func (f *Frame) Flat() []float32 {
	return f.samples[:len(f.samples):len(f.samples)]
}

// Descriptor returns the frame's dimensions.
func (f *Frame) Descriptor() DimensionDescriptor {
	return DimensionDescriptor{Width: f.width, Height: f.height}
}
