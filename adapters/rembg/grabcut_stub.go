//go:build !gocv
// +build !gocv

package rembg

import (
	"context"
	"errors"

	"github.com/prodimg/studio/core"
	apperrors "github.com/prodimg/studio/errors"
)

// GrabCut is the stub used when the binary is built without the gocv tag.
type GrabCut struct {
	Iterations int
	BorderFrac float64
	CanvasSize int
}

// NewGrabCut creates the stub remover.
func NewGrabCut(canvasSize int) *GrabCut {
	return &GrabCut{
		Iterations: 5,
		BorderFrac: 0.05,
		CanvasSize: canvasSize,
	}
}

// Remove reports that the binary was built without OpenCV support.
func (g *GrabCut) Remove(ctx context.Context, img *core.Artifact) (*core.Artifact, error) {
	_ = ctx
	_ = img
	return nil, apperrors.New(apperrors.CategoryService, "grabcut.remove",
		errors.New("gocv build tag is not enabled"))
}

var _ core.BackgroundRemover = (*GrabCut)(nil)
