package raster

import (
	"context"
	"image"

	"github.com/prodimg/studio/codec"
	"github.com/prodimg/studio/core"
)

// Adjuster is the pure-Go cosmetic pass of the finalizer: brightness and
// saturation scaling, a sharpening convolution, and a linear contrast
// stretch, all deterministic functions of the pixel buffer.  It satisfies
// core.Adjuster; adapters/vips provides a libvips-backed alternative.
type Adjuster struct {
	Brightness float64 // channel multiplier; 1.0 = unchanged
	Saturation float64 // distance-from-gray multiplier; 1.0 = unchanged
	Sharpen    float64 // blend factor for the sharpen kernel; 0 = off
	// Linear contrast stretch anchors: values at or below Low map to 0,
	// values at or above High map to 255.
	ContrastLow  uint8
	ContrastHigh uint8
}

// DefaultAdjuster returns the catalog-shot preset.  The values are gentle on
// purpose so a second pass over already-finished output stays close to a
// no-op.
func DefaultAdjuster() *Adjuster {
	return &Adjuster{
		Brightness:   1.02,
		Saturation:   1.05,
		Sharpen:      0.3,
		ContrastLow:  2,
		ContrastHigh: 253,
	}
}

// Adjust applies the passes in fixed order and returns a new artifact.
func (a *Adjuster) Adjust(_ context.Context, art *core.Artifact) (*core.Artifact, error) {
	img := art.Image
	img = scaleBrightnessSaturation(img, a.Brightness, a.Saturation)
	if a.Sharpen > 0 {
		img = sharpen(img, a.Sharpen)
	}
	img = stretchContrast(img, a.ContrastLow, a.ContrastHigh)
	return codec.NewArtifact(img)
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// scaleBrightnessSaturation applies both multipliers in one pass.  Alpha is
// left untouched.
func scaleBrightnessSaturation(img *image.NRGBA, brightness, saturation float64) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	for i := 0; i+3 < len(out.Pix); i += 4 {
		r := float64(out.Pix[i])
		g := float64(out.Pix[i+1])
		b := float64(out.Pix[i+2])

		// Rec. 601 luma as the gray anchor for saturation.
		gray := 0.299*r + 0.587*g + 0.114*b
		r = gray + (r-gray)*saturation
		g = gray + (g-gray)*saturation
		b = gray + (b-gray)*saturation

		out.Pix[i] = clamp255(r * brightness)
		out.Pix[i+1] = clamp255(g * brightness)
		out.Pix[i+2] = clamp255(b * brightness)
	}
	return out
}

// sharpen convolves with the standard 3×3 sharpen kernel and blends the
// result with the original by amount.  Border pixels are copied unchanged.
func sharpen(img *image.NRGBA, amount float64) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(b)
	copy(out.Pix, img.Pix)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			for c := 0; c < 3; c++ {
				i := y*img.Stride + x*4 + c
				center := float64(img.Pix[i])
				sum := 5*center -
					float64(img.Pix[i-4]) -
					float64(img.Pix[i+4]) -
					float64(img.Pix[i-img.Stride]) -
					float64(img.Pix[i+img.Stride])
				out.Pix[i] = clamp255(center + (sum-center)*amount)
			}
		}
	}
	return out
}

// stretchContrast linearly maps [low, high] onto [0, 255].
func stretchContrast(img *image.NRGBA, low, high uint8) *image.NRGBA {
	if high <= low {
		return img
	}
	scale := 255.0 / float64(high-low)
	out := image.NewNRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	for i := 0; i+3 < len(out.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			out.Pix[i+c] = clamp255((float64(out.Pix[i+c]) - float64(low)) * scale)
		}
	}
	return out
}
