package rembg

import (
	"context"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const DefaultTolerance = 32.0

// FloodRemBG clears the region connected to the image border whose colour
// is close to the dominant border colour. It needs no model and is
// deterministic, which suits product shots and icons on a plain backdrop.
type FloodRemBG struct {
	Tolerance float64
}

func NewFloodRemBG(tolerance float64) *FloodRemBG {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &FloodRemBG{Tolerance: tolerance}
}

func (f *FloodRemBG) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	dst := imaging.Clone(img)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	if w == 0 || h == 0 {
		return dst, nil
	}

	bg := borderColor(dst)
	tol2 := f.Tolerance * f.Tolerance
	matches := func(i int) bool {
		p := dst.Pix[i : i+4 : i+4]
		if p[3] == 0 {
			return true
		}
		dr := float64(p[0]) - bg[0]
		dg := float64(p[1]) - bg[1]
		db := float64(p[2]) - bg[2]
		return dr*dr+dg*dg+db*db <= tol2
	}

	seen := make([]bool, w*h)
	queue := make([]int, 0, 2*(w+h))
	push := func(x, y int) {
		idx := y*w + x
		if seen[idx] {
			return
		}
		seen[idx] = true
		if matches(y*dst.Stride + x*4) {
			queue = append(queue, idx)
		}
	}

	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}

	for n := 0; len(queue) > 0; n++ {
		if n&0xffff == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		idx := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		x, y := idx%w, idx/w
		dst.Pix[y*dst.Stride+x*4+3] = 0

		if x > 0 {
			push(x-1, y)
		}
		if x < w-1 {
			push(x+1, y)
		}
		if y > 0 {
			push(x, y-1)
		}
		if y < h-1 {
			push(x, y+1)
		}
	}

	return dst, nil
}

// borderColor returns the mean colour of the most common bucket among the
// border pixels, quantised to 4 bits per channel. Ties go to the lower
// bucket so the result does not depend on map order.
func borderColor(img *image.NRGBA) [3]float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	type bucket struct {
		n       int
		r, g, b int
	}
	buckets := map[int]*bucket{}
	add := func(x, y int) {
		p := img.Pix[y*img.Stride+x*4:]
		key := int(p[0]>>4)<<8 | int(p[1]>>4)<<4 | int(p[2]>>4)
		bk, ok := buckets[key]
		if !ok {
			bk = &bucket{}
			buckets[key] = bk
		}
		bk.n++
		bk.r += int(p[0])
		bk.g += int(p[1])
		bk.b += int(p[2])
	}

	for x := 0; x < w; x++ {
		add(x, 0)
		if h > 1 {
			add(x, h-1)
		}
	}
	for y := 1; y < h-1; y++ {
		add(0, y)
		if w > 1 {
			add(w-1, y)
		}
	}

	bestKey, best := math.MaxInt, (*bucket)(nil)
	for key, bk := range buckets {
		if best == nil || bk.n > best.n || (bk.n == best.n && key < bestKey) {
			bestKey, best = key, bk
		}
	}

	n := float64(best.n)
	return [3]float64{float64(best.r) / n, float64(best.g) / n, float64(best.b) / n}
}
