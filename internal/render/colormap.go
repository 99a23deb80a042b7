package render

import (
	"fmt"
	"image/color"
	"slices"
)

// Colormap maps display values in [0, 1] to colors through a 256-entry table.
type Colormap struct {
	Name string
	lut  [256]color.RGBA
}

// Built-in colormap names.
const (
	ColormapViridis = "viridis"
	ColormapInferno = "inferno"
	ColormapGray    = "gray"
)

// Control points sampled from the matplotlib maps of the same name.
var colormapStops = map[string][]color.RGBA{
	ColormapViridis: {
		{68, 1, 84, 255}, {72, 40, 120, 255}, {62, 74, 137, 255}, {49, 104, 142, 255},
		{38, 130, 142, 255}, {31, 158, 137, 255}, {53, 183, 121, 255}, {109, 205, 89, 255},
		{180, 222, 44, 255}, {253, 231, 37, 255},
	},
	ColormapInferno: {
		{0, 0, 4, 255}, {27, 12, 65, 255}, {74, 12, 107, 255}, {120, 28, 109, 255},
		{165, 44, 96, 255}, {207, 68, 70, 255}, {237, 105, 37, 255}, {251, 155, 6, 255},
		{247, 209, 61, 255}, {252, 255, 164, 255},
	},
	ColormapGray: {
		{0, 0, 0, 255}, {255, 255, 255, 255},
	},
}

// Colormaps lists the built-in names.
func Colormaps() []string {
	names := make([]string, 0, len(colormapStops))
	for n := range colormapStops {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// LookupColormap returns the named colormap. The empty name selects viridis.
func LookupColormap(name string) (*Colormap, error) {
	if name == "" {
		name = ColormapViridis
	}
	stops, ok := colormapStops[name]
	if !ok {
		return nil, fmt.Errorf("unknown colormap %q", name)
	}
	cm := &Colormap{Name: name}
	segs := len(stops) - 1
	for i := range cm.lut {
		pos := float64(i) / 255 * float64(segs)
		k := min(int(pos), segs-1)
		frac := pos - float64(k)
		a, b := stops[k], stops[k+1]
		cm.lut[i] = color.RGBA{
			R: lerp(a.R, b.R, frac),
			G: lerp(a.G, b.G, frac),
			B: lerp(a.B, b.B, frac),
			A: 255,
		}
	}
	return cm, nil
}

// At returns the color for v. Values outside [0, 1] (and NaN) are clipped.
func (c *Colormap) At(v float64) color.RGBA {
	switch {
	case !(v > 0):
		return c.lut[0]
	case v >= 1:
		return c.lut[255]
	}
	return c.lut[int(v*255+0.5)]
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}
