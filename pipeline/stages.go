package pipeline

import (
	"context"
	"errors"
	"image"

	"github.com/prodimg/studio/codec"
	"github.com/prodimg/studio/core"
	apperrors "github.com/prodimg/studio/errors"
	"github.com/prodimg/studio/raster"
)

// currentImage returns the decoded pixel buffer of the working artifact.
// Adapters are free to hand back encoded bytes only (the vips backend
// does), so stages that need pixels decode from Data when Image is unset.
func currentImage(pc *core.Context) (*image.NRGBA, error) {
	if pc.Current.Image != nil {
		return pc.Current.Image, nil
	}
	decoded, _, err := codec.Decode(pc.Current.Data)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

// ── Normalize ─────────────────────────────────────────────────────────────────

// NormalizeStage decodes the input photo, ensures an alpha channel, and
// contain-fits it onto the transparent canonical canvas as PNG.  Nothing is
// ever cropped here.
type NormalizeStage struct{}

func (s *NormalizeStage) Name() string { return "normalize" }

func (s *NormalizeStage) Run(ctx context.Context, pc *core.Context) core.Result {
	if err := ctx.Err(); err != nil {
		return core.Fatal(apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err))
	}

	decoded, _, err := codec.Decode(pc.Current.Data)
	if err != nil {
		return core.Fatal(err)
	}

	fitted := raster.ContainFit(decoded, pc.CanvasSize, raster.Transparent)
	art, err := codec.NewArtifact(fitted)
	if err != nil {
		return core.Fatal(err)
	}
	return core.Success(art)
}

// ── RemoveBackground ──────────────────────────────────────────────────────────

// RemoveBackgroundStage isolates the subject via the configured remover.
// When the remover's retries are exhausted the stage degrades to the
// normalized image unchanged (the subject/background split simply does not
// happen) rather than halting the pipeline.
type RemoveBackgroundStage struct {
	Remover core.BackgroundRemover
}

func (s *RemoveBackgroundStage) Name() string { return "remove_background" }

func (s *RemoveBackgroundStage) Run(ctx context.Context, pc *core.Context) core.Result {
	if s.Remover == nil {
		return core.Success(pc.Current)
	}

	out, err := s.Remover.Remove(ctx, pc.Current)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return core.Fatal(apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err))
		}
		// The normalized artifact already sits on a transparent canvas, so
		// the fallback is a no-op removal.
		return core.Degraded(pc.Current, "background removal failed, continuing without cut-out: %v", err)
	}
	return core.Success(out)
}

// ── Reposition ────────────────────────────────────────────────────────────────

// RepositionStage crops the subject to its opaque bounding box, scales it
// into the configured canvas fractions, and composites it centred
// horizontally with its bottom edge a fixed margin above the canvas bottom
// (the catalog-style center-bottom rule).
type RepositionStage struct {
	AlphaThreshold   uint8
	CropPadding      int
	MaxWidthFrac     float64
	MaxHeightFrac    float64
	BottomMarginFrac float64
}

func (s *RepositionStage) Name() string { return "reposition" }

func (s *RepositionStage) Run(ctx context.Context, pc *core.Context) core.Result {
	if err := ctx.Err(); err != nil {
		return core.Fatal(apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err))
	}

	img, err := currentImage(pc)
	if err != nil {
		return core.Fatal(err)
	}
	box, found := raster.OpaqueBounds(img, s.AlphaThreshold)
	if !found {
		// Nothing opaque at all: treat the whole canvas as the subject.
		box = img.Bounds()
	}

	cropped, err := raster.CropWithPadding(img, box, s.CropPadding)
	if err != nil {
		return core.Fatal(err)
	}

	maxW := int(float64(pc.CanvasSize) * s.MaxWidthFrac)
	maxH := int(float64(pc.CanvasSize) * s.MaxHeightFrac)
	fitted := raster.FitWithin(cropped, maxW, maxH)

	w := fitted.Bounds().Dx()
	h := fitted.Bounds().Dy()
	left := (pc.CanvasSize - w) / 2
	bottomMargin := int(float64(pc.CanvasSize) * s.BottomMarginFrac)
	top := pc.CanvasSize - bottomMargin - h

	composed := raster.ComposeOnCanvas(raster.SquareCanvas(pc.CanvasSize, raster.Transparent), fitted, left, top)
	art, err := codec.NewArtifact(composed)
	if err != nil {
		return core.Fatal(err)
	}
	return core.Success(art)
}

// ── SynthesizeMask ────────────────────────────────────────────────────────────

// SynthesizeMaskStage derives the editable-region mask from the current
// artifact's alpha channel and stores it on the context for the inpaint
// stage.  The current artifact passes through unchanged.
type SynthesizeMaskStage struct {
	Invert bool
}

func (s *SynthesizeMaskStage) Name() string { return "synthesize_mask" }

func (s *SynthesizeMaskStage) Run(ctx context.Context, pc *core.Context) core.Result {
	if err := ctx.Err(); err != nil {
		return core.Fatal(apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err))
	}

	img, err := currentImage(pc)
	if err != nil {
		return core.Fatal(err)
	}

	mask := raster.MaskFromAlpha(img, s.Invert)
	art, err := codec.NewArtifact(mask)
	if err != nil {
		return core.Fatal(err)
	}
	pc.Mask = art
	return core.Success(pc.Current)
}

// ── Inpaint ───────────────────────────────────────────────────────────────────

// InpaintStage asks the generative service to rewrite the masked region.
// No algorithm can approximate a generative edit, so exhausted retries are
// fatal; the orchestrator then exposes the pre-inpaint artifact as the
// best-effort result.
type InpaintStage struct {
	Inpainter core.Inpainter
	Prompt    string
}

func (s *InpaintStage) Name() string { return "inpaint" }

func (s *InpaintStage) Run(ctx context.Context, pc *core.Context) core.Result {
	if s.Inpainter == nil {
		return core.Success(pc.Current)
	}
	if pc.Mask == nil {
		return core.Fatal(apperrors.New(apperrors.CategoryPipeline, s.Name(),
			errors.New("no mask synthesized before inpaint")))
	}

	out, err := s.Inpainter.Edit(ctx, pc.Current, pc.Mask, s.Prompt)
	if err != nil {
		return core.Fatal(err)
	}
	return core.Success(out)
}

// ── PostProcess ───────────────────────────────────────────────────────────────

// PostProcessStage is the result finalizer: flatten onto opaque white, the
// cosmetic adjuster pass, then the near-white snap.  Output is always a
// fully opaque canvas-sized PNG.
type PostProcessStage struct {
	Adjuster        core.Adjuster
	WhitenThreshold uint8
}

func (s *PostProcessStage) Name() string { return "post_process" }

func (s *PostProcessStage) Run(ctx context.Context, pc *core.Context) core.Result {
	if err := ctx.Err(); err != nil {
		return core.Fatal(apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err))
	}

	img, err := currentImage(pc)
	if err != nil {
		return core.Fatal(err)
	}

	flattened := raster.FlattenOnto(img, raster.White)
	art, err := codec.NewArtifact(flattened)
	if err != nil {
		return core.Fatal(err)
	}

	if s.Adjuster != nil {
		art, err = s.Adjuster.Adjust(ctx, art)
		if err != nil {
			return core.Fatal(err)
		}
		if art.Image == nil {
			decoded, _, decodeErr := codec.Decode(art.Data)
			if decodeErr != nil {
				return core.Fatal(decodeErr)
			}
			art.Image = decoded
		}
	}

	whitened := raster.WhitenNearWhite(art.Image, s.WhitenThreshold)
	final, err := codec.NewArtifact(whitened)
	if err != nil {
		return core.Fatal(err)
	}
	return core.Success(final)
}
