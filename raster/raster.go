// Package raster implements the pixel-buffer geometry the pipeline is built
// on: opaque bounding boxes, mask synthesis, canvas compositing, and the
// whitening pass used by the finalizer.  All functions treat their inputs as
// immutable and return freshly allocated buffers.
package raster

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"

	apperrors "github.com/prodimg/studio/errors"
)

// Transparent and White are the two canvas backgrounds the pipeline uses.
var (
	Transparent = color.NRGBA{}
	White       = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// CanvasSpec describes a canvas allocated by ComposeOnCanvas.
type CanvasSpec struct {
	Width      int
	Height     int
	Background color.NRGBA
}

// SquareCanvas returns a size×size canvas spec with the given background.
func SquareCanvas(size int, bg color.NRGBA) CanvasSpec {
	return CanvasSpec{Width: size, Height: size, Background: bg}
}

// OpaqueBounds scans every pixel once and returns the bounding box of all
// pixels whose alpha exceeds threshold.  The second return value is false
// when no pixel qualifies (the empty sentinel).  A threshold of 0 selects
// every pixel that is not fully transparent; higher values ignore faint
// anti-aliasing fringes.
func OpaqueBounds(img *image.NRGBA, threshold uint8) (image.Rectangle, bool) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	minX, minY := w, h
	maxX, maxY := -1, -1
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			if img.Pix[row+x*4+3] > threshold {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// CropWithPadding extracts box expanded by padding pixels on each side,
// clamped to the image bounds.  An empty box is an error.
func CropWithPadding(img *image.NRGBA, box image.Rectangle, padding int) (*image.NRGBA, error) {
	if box.Empty() {
		return nil, apperrors.New(apperrors.CategoryPipeline, "raster.crop", apperrors.ErrEmptyBounds)
	}

	rect := box.Inset(-padding).Intersect(img.Bounds())
	dst := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst, nil
}

// FitWithin proportionally downsizes img so both dimensions are at most
// maxW×maxH.  It never upsizes; an image already within bounds is returned
// unchanged (same pointer).
func FitWithin(img *image.NRGBA, maxW, maxH int) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	ratioW := float64(maxW) / float64(w)
	ratioH := float64(maxH) / float64(h)
	ratio := ratioW
	if ratioH < ratio {
		ratio = ratioH
	}
	newW := int(float64(w) * ratio)
	newH := int(float64(h) * ratio)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	resized := resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3)
	return ToNRGBA(resized)
}

// ComposeOnCanvas allocates a canvas per spec and composites overlay at the
// integer offset (left, top).  Offsets may be negative or exceed the canvas
// bounds; the composited region is clipped rather than failing.
func ComposeOnCanvas(spec CanvasSpec, overlay *image.NRGBA, left, top int) *image.NRGBA {
	canvas := NewUniform(spec.Width, spec.Height, spec.Background)

	target := image.Rect(left, top, left+overlay.Bounds().Dx(), top+overlay.Bounds().Dy())
	clipped := target.Intersect(canvas.Bounds())
	if clipped.Empty() {
		return canvas
	}
	srcMin := overlay.Bounds().Min.Add(clipped.Min.Sub(target.Min))
	draw.Draw(canvas, clipped, overlay, srcMin, draw.Over)
	return canvas
}

// MaskFromAlpha builds an editable-region mask of the same dimensions: the
// gray channels are 255 where the source alpha is below 128 (background)
// and 0 elsewhere, or the complement when invert is set.  The mask's own
// alpha channel is always fully opaque, per the inpainting service's mask
// semantics.
func MaskFromAlpha(img *image.NRGBA, invert bool) *image.NRGBA {
	b := img.Bounds()
	mask := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		srcRow := y * img.Stride
		dstRow := y * mask.Stride
		for x := 0; x < b.Dx(); x++ {
			v := uint8(0)
			if img.Pix[srcRow+x*4+3] < 128 {
				v = 255
			}
			if invert {
				v = 255 - v
			}
			i := dstRow + x*4
			mask.Pix[i] = v
			mask.Pix[i+1] = v
			mask.Pix[i+2] = v
			mask.Pix[i+3] = 255
		}
	}
	return mask
}

// WhitenNearWhite snaps any pixel whose R, G, and B all exceed threshold to
// pure white, leaving alpha untouched.  Removes residual off-white halos
// after generative editing.  The input is copied, not mutated.
func WhitenNearWhite(img *image.NRGBA, threshold uint8) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	for i := 0; i+3 < len(out.Pix); i += 4 {
		if out.Pix[i] > threshold && out.Pix[i+1] > threshold && out.Pix[i+2] > threshold {
			out.Pix[i] = 255
			out.Pix[i+1] = 255
			out.Pix[i+2] = 255
		}
	}
	return out
}

// FlattenOnto composites img over an opaque background of the given color,
// discarding all transparency.
func FlattenOnto(img *image.NRGBA, bg color.NRGBA) *image.NRGBA {
	out := NewUniform(img.Bounds().Dx(), img.Bounds().Dy(), bg)
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Over)
	return out
}

// ContainFit scales img (up or down, preserving aspect ratio) so it fits
// within a size×size square and centres it on a canvas of that size with
// the given background.  Nothing is ever cropped.
func ContainFit(img *image.NRGBA, size int, bg color.NRGBA) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	ratioW := float64(size) / float64(w)
	ratioH := float64(size) / float64(h)
	ratio := ratioW
	if ratioH < ratio {
		ratio = ratioH
	}
	newW := int(float64(w) * ratio)
	newH := int(float64(h) * ratio)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	scaled := img
	if newW != w || newH != h {
		dst := image.NewNRGBA(image.Rect(0, 0, newW, newH))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		scaled = dst
	}

	return ComposeOnCanvas(SquareCanvas(size, bg), scaled, (size-newW)/2, (size-newH)/2)
}

// ToNRGBA converts any image to a zero-origin NRGBA buffer.
func ToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Bounds().Min == image.Pt(0, 0) {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// HasUsefulAlpha reports whether the buffer carries any transparency at all.
// A fully opaque alpha channel means the photo has not been cut out yet.
func HasUsefulAlpha(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			return true
		}
	}
	return false
}

// NewUniform allocates a w×h NRGBA buffer filled with c.
func NewUniform(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	if (c != color.NRGBA{}) {
		draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	}
	return img
}
