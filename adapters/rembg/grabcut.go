//go:build gocv
// +build gocv

package rembg

import (
	"context"
	"errors"
	"image"

	"gocv.io/x/gocv"

	"github.com/prodimg/studio/codec"
	"github.com/prodimg/studio/core"
	apperrors "github.com/prodimg/studio/errors"
	"github.com/prodimg/studio/raster"
)

// GrabCut segments the subject locally with OpenCV's GrabCut, initialised
// from a border rectangle.  Slower and rougher than the external service
// but needs no network or API key.
type GrabCut struct {
	Iterations int
	BorderFrac float64 // rect inset from each edge as a fraction of the side
	CanvasSize int
}

// NewGrabCut creates a GrabCut remover for the given canvas size.
func NewGrabCut(canvasSize int) *GrabCut {
	return &GrabCut{
		Iterations: 5,
		BorderFrac: 0.05,
		CanvasSize: canvasSize,
	}
}

// Remove runs GrabCut and converts the foreground mask into the subject's
// alpha channel.
func (g *GrabCut) Remove(ctx context.Context, img *core.Artifact) (*core.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryService, "grabcut.remove", err)
	}
	if img.Image == nil {
		return nil, apperrors.New(apperrors.CategoryService, "grabcut.remove", apperrors.ErrEmptyInput)
	}

	mat, err := gocv.IMDecode(img.Data, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		if !mat.Empty() {
			mat.Close()
		}
		return nil, apperrors.New(apperrors.CategoryService, "grabcut.decode", errors.New("failed to decode image"))
	}
	defer mat.Close()

	w, h := mat.Cols(), mat.Rows()
	borderX := int(float64(w) * g.BorderFrac)
	borderY := int(float64(h) * g.BorderFrac)
	rect := image.Rect(borderX, borderY, w-borderX, h-borderY)

	mask := gocv.NewMat()
	defer mask.Close()
	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	gocv.GrabCut(mat, &mask, rect, &bgdModel, &fgdModel, g.Iterations, gocv.GCInitWithRect)

	// Mask values 1 (foreground) and 3 (probable foreground) keep their
	// pixels; everything else becomes transparent.
	src := img.Image
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := mask.GetUCharAt(y, x)
			i := y*out.Stride + x*4
			if v == 1 || v == 3 {
				si := y*src.Stride + x*4
				copy(out.Pix[i:i+4], src.Pix[si:si+4])
				out.Pix[i+3] = 255
			}
		}
	}

	fitted := raster.ContainFit(out, g.CanvasSize, raster.Transparent)
	return codec.NewArtifact(fitted)
}

var _ core.BackgroundRemover = (*GrabCut)(nil)
