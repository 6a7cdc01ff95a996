// Package vips provides a libvips-backed implementation of the finalizer's
// cosmetic pass for deployments where throughput matters more than a pure-Go
// build.
package vips

import (
	"context"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/prodimg/studio/core"
	apperrors "github.com/prodimg/studio/errors"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	Brightness   float64 // linear multiplier; 1.0 = unchanged
	SharpenSigma float64 // radius of the unsharp mask
	MaxWorkers   int
	MaxCacheSize int
	ReportLeaks  bool
}

// Backend is a libvips-powered core.Adjuster.  Safe for concurrent use.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.
// Call Shutdown() when the process exits.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.Brightness <= 0 {
		cfg.Brightness = 1.02
	}
	if cfg.SharpenSigma <= 0 {
		cfg.SharpenSigma = 0.5
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
		CollectStats:     true,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources.  Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

// Adjust applies the brightness scale and unsharp mask with libvips and
// re-exports the artifact as PNG.
func (b *Backend) Adjust(ctx context.Context, art *core.Artifact) (*core.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "vips.adjust", err)
	}
	if len(art.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, "vips.adjust", apperrors.ErrEmptyInput)
	}

	ref, err := govips.NewImageFromBuffer(art.Data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "vips.adjust.load", err)
	}
	defer ref.Close()

	if err := ref.Linear1(b.cfg.Brightness, 0); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "vips.adjust.linear", err)
	}
	if err := ref.Sharpen(b.cfg.SharpenSigma, 1.0, 2.0); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "vips.adjust.sharpen", err)
	}

	data, _, err := ref.ExportPng(govips.NewPngExportParams())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "vips.adjust.export", err)
	}

	out := *art
	out.Data = data
	out.Image = nil // decoded buffer is stale after the vips pass
	out.Meta.Width = ref.Width()
	out.Meta.Height = ref.Height()
	out.Meta.SizeBytes = int64(len(data))
	return &out, nil
}

var _ core.Adjuster = (*Backend)(nil)
