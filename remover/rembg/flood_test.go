package rembg

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// circleOnWhite draws a hard-edged disc of c centred in a size x size white
// square.
func circleOnWhite(size, radius int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	cx, cy := size/2, size/2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= radius*radius {
				img.SetNRGBA(x, y, c)
			} else {
				img.SetNRGBA(x, y, white)
			}
		}
	}
	return img
}

func alphaAt(img image.Image, x, y int) uint8 {
	_, _, _, a := img.At(x, y).RGBA()
	return uint8(a >> 8)
}

func TestFloodRemBG_Remove_CircleOnWhite(t *testing.T) {
	src := circleOnWhite(100, 30, color.NRGBA{R: 20, G: 90, B: 200, A: 255})

	got, err := NewFloodRemBG(0).Remove(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, src.Bounds(), got.Bounds())

	assert.Zero(t, alphaAt(got, 0, 0))
	assert.Zero(t, alphaAt(got, 99, 99))
	assert.Zero(t, alphaAt(got, 50, 5))
	assert.Equal(t, uint8(255), alphaAt(got, 50, 50))
	assert.Equal(t, uint8(255), alphaAt(got, 50, 21))

	// source untouched
	assert.Equal(t, uint8(255), alphaAt(src, 0, 0))
}

func TestFloodRemBG_Remove_KeepsEnclosedBackground(t *testing.T) {
	// a black ring: the white inside is not connected to the border
	src := circleOnWhite(40, 15, color.NRGBA{A: 255})
	for y := 15; y < 25; y++ {
		for x := 15; x < 25; x++ {
			src.SetNRGBA(x, y, white)
		}
	}

	got, err := NewFloodRemBG(0).Remove(context.Background(), src)
	require.NoError(t, err)

	assert.Zero(t, alphaAt(got, 1, 1))
	assert.Equal(t, uint8(255), alphaAt(got, 20, 20))
}

func TestFloodRemBG_Remove_Tolerance(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			src.SetNRGBA(x, y, white)
		}
	}
	// off-white block in the middle, 15 units away on each channel
	for y := 3; y < 7; y++ {
		for x := 3; x < 7; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 240, G: 240, B: 240, A: 255})
		}
	}

	tests := []struct {
		name      string
		tolerance float64
		want      uint8
	}{
		{name: "default tolerance swallows off-white", tolerance: 0, want: 0},
		{name: "tight tolerance keeps off-white", tolerance: 10, want: 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewFloodRemBG(tt.tolerance).Remove(context.Background(), src)
			require.NoError(t, err)
			assert.Zero(t, alphaAt(got, 0, 0))
			assert.Equal(t, tt.want, alphaAt(got, 5, 5))
		})
	}
}

func TestFloodRemBG_Remove_Uniform(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 7, 3))
	for i := range src.Pix {
		src.Pix[i] = 128
	}

	got, err := NewFloodRemBG(0).Remove(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, HasUsefulAlpha(got))
	for y := 0; y < 3; y++ {
		for x := 0; x < 7; x++ {
			assert.Zero(t, alphaAt(got, x, y))
		}
	}
}

func TestFloodRemBG_Remove_Deterministic(t *testing.T) {
	src := circleOnWhite(64, 20, color.NRGBA{R: 200, A: 255})
	r := NewFloodRemBG(0)

	a, err := r.Remove(context.Background(), src)
	require.NoError(t, err)
	b, err := r.Remove(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, a.(*image.NRGBA).Pix, b.(*image.NRGBA).Pix)
}

func TestFloodRemBG_Remove_OffsetBounds(t *testing.T) {
	full := circleOnWhite(30, 8, color.NRGBA{G: 200, A: 255})
	sub := full.SubImage(image.Rect(5, 5, 25, 25))

	got, err := NewFloodRemBG(0).Remove(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 20), got.Bounds())
	assert.Zero(t, alphaAt(got, 0, 0))
	assert.Equal(t, uint8(255), alphaAt(got, 10, 10))
}

func TestFloodRemBG_Remove_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFloodRemBG(0).Remove(ctx, circleOnWhite(20, 5, color.NRGBA{A: 255}))
	assert.ErrorIs(t, err, context.Canceled)
}
