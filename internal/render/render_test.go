package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/specmon/internal/models"
	"github.com/starford/specmon/internal/scheduler"
	"github.com/starford/specmon/internal/trace"
)

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestLookupColormap(t *testing.T) {
	cm, err := LookupColormap("")
	require.NoError(t, err)
	assert.Equal(t, ColormapViridis, cm.Name)
	assert.Equal(t, color.RGBA{68, 1, 84, 255}, cm.At(0))
	assert.Equal(t, color.RGBA{253, 231, 37, 255}, cm.At(1))

	// Out of range inputs are clipped.
	assert.Equal(t, cm.At(0), cm.At(-3))
	assert.Equal(t, cm.At(1), cm.At(7))

	_, err = LookupColormap("jet")
	assert.Error(t, err)
	assert.Equal(t, []string{"gray", "inferno", "viridis"}, Colormaps())
}

func TestGrayColormapIsMonotonic(t *testing.T) {
	cm, err := LookupColormap(ColormapGray)
	require.NoError(t, err)
	prev := -1
	for i := 0; i <= 100; i++ {
		c := cm.At(float64(i) / 100)
		require.GreaterOrEqual(t, int(c.R), prev)
		prev = int(c.R)
	}
}

func TestHeatmap_RowZeroOnTop(t *testing.T) {
	cm, _ := LookupColormap(ColormapGray)
	m := &models.DisplayMatrix{Width: 2, Height: 2, Values: []float64{1, 1, 0, 0}}
	img := Heatmap(m, cm)

	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(1, 1))
}

func TestRenderer_HeatmapPNG(t *testing.T) {
	r, err := New(Options{Colormap: ColormapGray, Width: 200})
	require.NoError(t, err)

	out := &scheduler.Output{
		Mode:   scheduler.ModeHeatmap,
		Matrix: &models.DisplayMatrix{Width: 4, Height: 2, Values: []float64{0, 0, 0, 0, 1, 1, 1, 1}},
	}
	data, err := r.PNG(out)
	require.NoError(t, err)

	img := decode(t, data)
	assert.Equal(t, image.Rect(0, 0, 200, 100), img.Bounds())

	top := color.RGBAModel.Convert(img.At(10, 10)).(color.RGBA)
	bottom := color.RGBAModel.Convert(img.At(10, 90)).(color.RGBA)
	assert.Equal(t, uint8(0), top.R)
	assert.Equal(t, uint8(255), bottom.R)

	data, err = r.PNGWidth(out, 1)
	require.NoError(t, err)
	assert.Equal(t, MinImageWidth, decode(t, data).Bounds().Dx())
}

func TestRenderer_TracePNG(t *testing.T) {
	r, err := New(Options{Width: 400})
	require.NoError(t, err)

	f, err := models.NewFrame(8, 2, []float32{1, 2, 3, 4, 5, 6, 7, 8, 8, 7, 6, 5, 4, 3, 2, 1})
	require.NoError(t, err)
	out := &scheduler.Output{Mode: scheduler.ModeTrace, Traces: trace.Project(f, 20)}

	data, err := r.PNG(out)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 400, 200), decode(t, data).Bounds())
}

func TestTraceChart_EdgeCases(t *testing.T) {
	// Placeholder: nothing visible.
	data, err := TraceChart(trace.Hidden(20), 300, 150)
	require.NoError(t, err)
	assert.Equal(t, 300, decode(t, data).Bounds().Dx())

	// Single bin and flat values.
	f, err := models.NewFrame(1, 1, []float32{5})
	require.NoError(t, err)
	data, err = TraceChart(trace.Project(f, 3), 300, 150)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRenderer_NothingToDraw(t *testing.T) {
	r, err := New(Options{})
	require.NoError(t, err)
	_, err = r.PNG(&scheduler.Output{Mode: scheduler.ModeHeatmap})
	assert.Error(t, err)
}

func TestHalfBlock(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	lines := HalfBlock(img, 4, 2)
	require.Len(t, lines, 2)
	for i, line := range lines {
		assert.Equal(t, 4, strings.Count(line, "▄"), "line %d", i)
		assert.True(t, strings.HasSuffix(line, "\x1b[0m"), "line %d", i)
		assert.Contains(t, line, "\x1b[48;2;255;0;0m")
		assert.Contains(t, line, "\x1b[38;2;255;0;0m")
	}

	// Resampled to the requested grid.
	assert.Len(t, HalfBlock(img, 10, 5), 5)
	assert.Equal(t, 10, strings.Count(HalfBlock(img, 10, 5)[0], "▄"))
	assert.Nil(t, HalfBlock(img, 0, 3))
}
