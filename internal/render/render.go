// Package render turns scheduler outputs into images: a colormapped heatmap,
// a trace line chart, or ANSI half-block art for terminals.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/starford/specmon/internal/scheduler"
)

const (
	DefaultImageWidth = 800
	MinImageWidth     = 64
	MaxImageWidth     = 4096
)

// Options controls image output.
type Options struct {
	Colormap string
	// Width of the PNG in pixels; the height is half of it.
	Width int
}

// Renderer renders scheduler outputs as PNG images.
type Renderer struct {
	cm    *Colormap
	width int
}

// New validates opts and returns a Renderer.
func New(opts Options) (*Renderer, error) {
	cm, err := LookupColormap(opts.Colormap)
	if err != nil {
		return nil, err
	}
	return &Renderer{cm: cm, width: clampWidth(opts.Width)}, nil
}

// Colormap returns the heatmap colormap.
func (r *Renderer) Colormap() *Colormap { return r.cm }

// PNG renders out at the configured width.
func (r *Renderer) PNG(out *scheduler.Output) ([]byte, error) {
	return r.PNGWidth(out, r.width)
}

// PNGWidth renders out at width pixels (clamped to the supported range).
func (r *Renderer) PNGWidth(out *scheduler.Output, width int) ([]byte, error) {
	w := clampWidth(width)
	h := max(w/2, 1)

	switch {
	case out.Mode == scheduler.ModeTrace:
		return TraceChart(out.Traces, w, h)
	case out.Matrix != nil && out.Matrix.Width > 0 && out.Matrix.Height > 0:
		return EncodePNG(Scale(Heatmap(out.Matrix, r.cm), w, h))
	default:
		return nil, fmt.Errorf("render: output %d has nothing to draw", out.Tick)
	}
}

// Image returns the heatmap at matrix resolution, or nil in trace mode.
func (r *Renderer) Image(out *scheduler.Output) image.Image {
	if out.Matrix == nil || out.Matrix.Width == 0 || out.Matrix.Height == 0 {
		return nil
	}
	return Heatmap(out.Matrix, r.cm)
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func blank(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bg := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = bg.R, bg.G, bg.B, bg.A
	}
	return img
}

func clampWidth(w int) int {
	switch {
	case w <= 0:
		return DefaultImageWidth
	case w < MinImageWidth:
		return MinImageWidth
	case w > MaxImageWidth:
		return MaxImageWidth
	}
	return w
}
