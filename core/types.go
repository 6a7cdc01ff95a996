package core

import (
	"fmt"
	"image"
	"time"
)

// Format identifies an image codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatUnknown Format = "unknown"
)

// Metadata holds basic information about an artifact's pixel buffer.
type Metadata struct {
	Width     int
	Height    int
	HasAlpha  bool
	SizeBytes int64
}

// Artifact is the single working image passed from stage to stage.
// Data holds encoded bytes; Image holds the decoded pixel buffer.  Stages
// treat artifacts as immutable and construct a new Artifact for their
// output; only the finalizer rewrites a buffer it exclusively owns.
type Artifact struct {
	Data   []byte
	Format Format
	Image  *image.NRGBA
	Meta   Metadata
}

// Bounds returns the pixel bounds recorded in the artifact's metadata.
func (a *Artifact) Bounds() image.Rectangle {
	return image.Rect(0, 0, a.Meta.Width, a.Meta.Height)
}

// Status tags a stage outcome.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusDegraded Status = "degraded"
	StatusFatal    Status = "fatal"
)

// Result is the tagged outcome returned by every pipeline stage.
type Result struct {
	Status   Status
	Artifact *Artifact
	Reason   string // populated for degraded outcomes
	Err      error  // populated for fatal outcomes
}

// Success wraps artifact in a successful Result.
func Success(a *Artifact) Result { return Result{Status: StatusSuccess, Artifact: a} }

// Degraded wraps a fallback artifact together with the reason the primary
// path was not taken.
func Degraded(a *Artifact, format string, args ...any) Result {
	return Result{Status: StatusDegraded, Artifact: a, Reason: fmt.Sprintf(format, args...)}
}

// Fatal marks the invocation as unable to proceed past this stage.
func Fatal(err error) Result { return Result{Status: StatusFatal, Err: err} }

// Warning records a degraded stage for the caller's diagnostics.
type Warning struct {
	Stage  string
	Reason string
}

// Context is the per-invocation state threaded through the pipeline.
// It is created at invocation start and discarded at invocation end; there
// is no cross-invocation state.
type Context struct {
	RunID      string
	CanvasSize int

	// Working artifacts.  Current is replaced by each stage's output; Mask
	// is populated by the mask-synthesis stage for the inpaint stage.
	Current *Artifact
	Mask    *Artifact

	// Diagnostics accumulated across stages.
	Timings  map[string]time.Duration
	Warnings []Warning
}

// NewContext creates a Context for one invocation.
func NewContext(runID string, canvasSize int) *Context {
	return &Context{
		RunID:      runID,
		CanvasSize: canvasSize,
		Timings:    make(map[string]time.Duration),
	}
}

// Warn records a degradation for later reporting.
func (c *Context) Warn(stage, reason string) {
	c.Warnings = append(c.Warnings, Warning{Stage: stage, Reason: reason})
}
