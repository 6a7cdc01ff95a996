package core

import (
	"context"
	"time"
)

// Stage is the fundamental pipeline building block.  A stage reads the
// context's current artifact and returns a tagged Result; it must not
// mutate the input artifact.
type Stage interface {
	Name() string
	Run(ctx context.Context, pc *Context) Result
}

// Hook is an optional observer invoked around pipeline stages.
type Hook interface {
	BeforeStage(ctx context.Context, stageName string, pc *Context)
	AfterStage(ctx context.Context, stageName string, pc *Context, d time.Duration, res Result)
}

// BackgroundRemover isolates the foreground subject of an image.
// Implementations live in adapters/rembg/; the vendor is selected by
// configuration rather than hardcoded into the orchestrator.
type BackgroundRemover interface {
	Remove(ctx context.Context, img *Artifact) (*Artifact, error)
}

// Inpainter performs a generative edit restricted to the masked region.
// Implementations live in adapters/inpaint/.
type Inpainter interface {
	Edit(ctx context.Context, img, mask *Artifact, prompt string) (*Artifact, error)
}

// Adjuster applies the deterministic cosmetic pass of the finalizer
// (brightness/saturation scaling, sharpening, contrast stretch).  The
// default implementation is pure Go; adapters/vips provides a libvips
// backend.
type Adjuster interface {
	Adjust(ctx context.Context, img *Artifact) (*Artifact, error)
}

// ArtifactStore persists pipeline outputs.  Implementations live in
// adapters/storage/.
type ArtifactStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
}

// MetricsCollector receives performance observations from the pipeline.
type MetricsCollector interface {
	RecordStageTime(stageName string, d time.Duration)
	RecordWarning(stageName string)
	RecordError(stageName string)
	RecordOutputBytes(bytes int64)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// NopLogger discards all log output; used when no logger is attached.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
