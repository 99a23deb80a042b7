package render

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/starford/specmon/internal/models"
)

// Heatmap returns one pixel per matrix cell, row 0 at the top.
func Heatmap(m *models.DisplayMatrix, cm *Colormap) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i := 0; i < m.Height; i++ {
		for j, v := range m.Row(i) {
			img.SetRGBA(j, i, cm.At(v))
		}
	}
	return img
}

// Scale resizes src to exactly w×h. Nearest-neighbour keeps cell edges sharp.
func Scale(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
