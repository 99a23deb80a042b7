package render

import (
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"
)

// HalfBlock renders img as ANSI true-color art using the lower half block
// (▄): each text row covers two pixel rows, the top one as background and the
// bottom one as foreground. The image is resampled to exactly cols×(2*rows)
// pixels.
func HalfBlock(img image.Image, cols, rows int) []string {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || cols <= 0 || rows <= 0 {
		return nil
	}

	h := rows * 2
	var src image.Image = img
	if b.Dx() != cols || b.Dy() != h {
		dst := image.NewRGBA(image.Rect(0, 0, cols, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		src = dst
	}

	lines := make([]string, 0, rows)
	for y := 0; y < h; y += 2 {
		var sb strings.Builder
		for x := 0; x < cols; x++ {
			tr, tg, tb := rgbAt(src, x, y)
			br, bg, bb := rgbAt(src, x, y+1)
			fmt.Fprintf(&sb, "\x1b[48;2;%d;%d;%dm\x1b[38;2;%d;%d;%dm▄", tr, tg, tb, br, bg, bb)
		}
		sb.WriteString("\x1b[0m")
		lines = append(lines, sb.String())
	}
	return lines
}

func rgbAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	b := img.Bounds()
	r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(bl >> 8)
}
