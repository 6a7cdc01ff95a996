// Package studio turns arbitrary product photos into studio-quality
// e-commerce images: a normalized square canvas, isolated subject,
// catalog-style composition, and a clean uniform background, optionally
// refined by a generative inpainting call.
package studio

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/prodimg/studio/adapters/inpaint"
	"github.com/prodimg/studio/adapters/rembg"
	"github.com/prodimg/studio/config"
	"github.com/prodimg/studio/core"
	apperrors "github.com/prodimg/studio/errors"
	"github.com/prodimg/studio/pipeline"
	"github.com/prodimg/studio/raster"
	"github.com/prodimg/studio/utils"
)

// Source abstracts where the input photo's bytes come from.
type Source struct {
	Reader io.Reader
	Name   string // optional logical name / filename
	Size   int64  // -1 if unknown
}

// FromReader creates a Source from an io.Reader.
func FromReader(r io.Reader) Source { return Source{Reader: r, Size: -1} }

// FromBytes creates a Source from an in-memory buffer.
func FromBytes(b []byte, name string) Source {
	return Source{Reader: bytes.NewReader(b), Name: name, Size: int64(len(b))}
}

// FromFile reads path into memory and wraps it in a Source.
func FromFile(path string) (Source, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Source{}, apperrors.Wrap(apperrors.CategoryDecode, "source.file", err)
	}
	return FromBytes(b, path), nil
}

// Report is returned to the caller after an invocation.  On a fatal stage
// outcome Image still carries the last good artifact (the best-effort
// result) alongside the returned error.
type Report struct {
	RunID    string
	Image    *core.Artifact
	Warnings []core.Warning
	Timings  map[string]time.Duration
}

// Degraded reports whether any stage completed via a fallback path.
func (r *Report) Degraded() bool { return len(r.Warnings) > 0 }

// Publisher pushes finished images to an external location, e.g. a blob
// container serving the storefront CDN.
type Publisher interface {
	Publish(ctx context.Context, name string, data []byte) error
}

// Enhancer wires the configuration, adapters, and stages for repeated
// invocations.  Concurrent invocations are independent: each one gets its
// own pipeline context and a distinct ksuid-derived artifact name.
type Enhancer struct {
	cfg       config.Config
	logger    core.Logger
	hooks     []core.Hook
	remover   core.BackgroundRemover
	inpainter core.Inpainter
	adjuster  core.Adjuster
	store     core.ArtifactStore
	publisher Publisher
}

// New creates an Enhancer.  The remover vendor and the inpainting client
// are built from the configuration; use the setters to inject test doubles
// or alternative backends.
func New(cfg config.Config) (*Enhancer, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "studio.new", err)
	}

	e := &Enhancer{
		cfg:      cfg,
		logger:   core.NopLogger{},
		adjuster: raster.DefaultAdjuster(),
	}

	switch cfg.Remover {
	case config.RemoverHTTP:
		e.remover = rembg.NewClient(rembg.Config{
			Endpoint:    cfg.RemoveBG.Endpoint,
			APIKey:      cfg.RemoveBG.APIKey,
			CanvasSize:  cfg.CanvasSize,
			MaxAttempts: cfg.MaxAttempts,
			BackoffBase: cfg.BackoffBase,
			Timeout:     cfg.RequestTimeout,
		}, e.logger)
	case config.RemoverGrabCut:
		e.remover = rembg.NewGrabCut(cfg.CanvasSize)
	case config.RemoverNone:
		e.remover = nil
	}

	if cfg.Inpaint.Endpoint != "" {
		e.inpainter = inpaint.NewClient(inpaint.Config{
			Endpoint:        cfg.Inpaint.Endpoint,
			APIKey:          cfg.Inpaint.APIKey,
			CanvasSize:      cfg.CanvasSize,
			MaxPayloadBytes: cfg.MaxPayloadBytes,
			MaxAttempts:     cfg.MaxAttempts,
			BackoffBase:     cfg.BackoffBase,
			Timeout:         cfg.RequestTimeout,
		}, e.logger)
	}

	return e, nil
}

// SetLogger attaches a structured logger.  The logger also reaches the
// config-built adapters, so their retry-attempt warnings are not lost.
func (e *Enhancer) SetLogger(l core.Logger) {
	if l == nil {
		return
	}
	e.logger = l

	type loggerSetter interface{ SetLogger(core.Logger) }
	if s, ok := e.remover.(loggerSetter); ok {
		s.SetLogger(l)
	}
	if s, ok := e.inpainter.(loggerSetter); ok {
		s.SetLogger(l)
	}
}

// AddHook registers an observer for pipeline stage events.
func (e *Enhancer) AddHook(h core.Hook) { e.hooks = append(e.hooks, h) }

// SetRemover replaces the background remover (nil disables the stage).
func (e *Enhancer) SetRemover(r core.BackgroundRemover) { e.remover = r }

// SetInpainter replaces the inpainting client (nil disables the stage).
func (e *Enhancer) SetInpainter(i core.Inpainter) { e.inpainter = i }

// SetAdjuster replaces the finalizer's cosmetic backend.
func (e *Enhancer) SetAdjuster(a core.Adjuster) {
	if a != nil {
		e.adjuster = a
	}
}

// SetStore attaches an artifact store that receives each run's final image.
func (e *Enhancer) SetStore(s core.ArtifactStore) { e.store = s }

// SetPublisher attaches a publisher for successfully finished images.
// Publishing is best-effort; a publish failure is logged, not returned.
func (e *Enhancer) SetPublisher(p Publisher) { e.publisher = p }

// Enhance runs the full stage sequence on one photo.  The returned Report
// always carries the best artifact produced so far, even when err is
// non-nil; err is non-nil only for fatal outcomes.
func (e *Enhancer) Enhance(ctx context.Context, src Source) (*Report, error) {
	runID := ksuid.New().String()

	raw, err := e.drain(ctx, src)
	if err != nil {
		return &Report{RunID: runID}, err
	}

	pc := core.NewContext(runID, e.cfg.CanvasSize)
	pc.Current = &core.Artifact{
		Data:   raw,
		Format: core.Format(utils.DetectFormat(raw)),
		Meta:   core.Metadata{SizeBytes: int64(len(raw))},
	}

	pipe := e.buildPipeline()
	final, runErr := pipe.Run(ctx, pc)

	report := &Report{
		RunID:    runID,
		Image:    final,
		Warnings: pc.Warnings,
		Timings:  pc.Timings,
	}

	if e.store != nil && final != nil && len(final.Data) > 0 {
		if putErr := e.store.Put(ctx, runID+".png", final.Data); putErr != nil {
			e.logger.Warn("studio.store_failed", "run_id", runID, "error", putErr.Error())
		}
	}
	// Only fully successful runs are published; degraded ones still go out,
	// fatal ones never leave the working directory.
	if e.publisher != nil && runErr == nil && final != nil && len(final.Data) > 0 {
		if pubErr := e.publisher.Publish(ctx, runID+".png", final.Data); pubErr != nil {
			e.logger.Warn("studio.publish_failed", "run_id", runID, "error", pubErr.Error())
		}
	}

	return report, runErr
}

func (e *Enhancer) buildPipeline() *pipeline.Pipeline {
	pipe := pipeline.New(
		&pipeline.NormalizeStage{},
		&pipeline.RemoveBackgroundStage{Remover: e.remover},
		&pipeline.RepositionStage{
			AlphaThreshold:   e.cfg.AlphaThreshold,
			CropPadding:      e.cfg.CropPadding,
			MaxWidthFrac:     e.cfg.MaxWidthFrac,
			MaxHeightFrac:    e.cfg.MaxHeightFrac,
			BottomMarginFrac: e.cfg.BottomMarginFrac,
		},
		&pipeline.SynthesizeMaskStage{Invert: e.cfg.InvertMask},
		&pipeline.InpaintStage{Inpainter: e.inpainter, Prompt: e.cfg.Prompt},
		&pipeline.PostProcessStage{Adjuster: e.adjuster, WhitenThreshold: e.cfg.WhitenThreshold},
	)
	pipe.SetLogger(e.logger)
	for _, h := range e.hooks {
		pipe.AddHook(h)
	}
	return pipe
}

// drain reads the source into memory, honouring the configured input
// ceiling.
func (e *Enhancer) drain(ctx context.Context, src Source) ([]byte, error) {
	var r io.Reader = src.Reader
	if r == nil {
		return nil, apperrors.New(apperrors.CategoryDecode, "studio.drain", apperrors.ErrEmptyInput)
	}
	if e.cfg.MaxSourceBytes > 0 {
		r = &utils.LimitedReader{R: r, Max: e.cfg.MaxSourceBytes}
	}

	buf, err := utils.DrainReader(ctx, r, 32*1024)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "studio.drain", err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	if len(raw) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "studio.drain", apperrors.ErrEmptyInput)
	}
	return raw, nil
}
