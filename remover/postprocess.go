package remover

import (
	"errors"
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
)

const trimThreshold = 0.05

var errNoForeground = errors.New("no foreground detected")

// featherAlpha blurs the alpha channel only; colour channels are kept.
func featherAlpha(img image.Image, radius float64) *image.NRGBA {
	dst := imaging.Clone(img)
	b := dst.Bounds()

	mask := image.NewGray(b)
	for i, j := 3, 0; i < len(dst.Pix); i, j = i+4, j+1 {
		mask.Pix[j] = dst.Pix[i]
	}

	blurred := blur.Gaussian(mask, radius)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Pix[y*dst.Stride+x*4+3] = blurred.Pix[y*blurred.Stride+x*4]
		}
	}
	return dst
}

// trimToAlpha 从 alpha 通道计算主体 bounding box 并裁剪
// 把 alpha > threshold * 255 的像素当作“主体”
func trimToAlpha(img image.Image, threshold float64) (*image.NRGBA, error) {
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	th := uint8(threshold * 255)

	minX, minY := w, h
	maxX, maxY := 0, 0
	found := false

	for y := 0; y < h; y++ {
		row := y * src.Stride
		for x := 0; x < w; x++ {
			if src.Pix[row+x*4+3] <= th {
				continue
			}
			found = true
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x), max(maxY, y)
		}
	}

	if !found {
		return nil, errNoForeground
	}

	return imaging.Crop(src, image.Rect(minX, minY, maxX+1, maxY+1)), nil
}
