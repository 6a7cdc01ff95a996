// Package pipeline runs the fixed stage sequence that turns a product photo
// into a studio shot: normalize → remove_background → reposition →
// synthesize_mask → inpaint → post_process.
package pipeline

import (
	"context"
	"time"

	"github.com/prodimg/studio/core"
	apperrors "github.com/prodimg/studio/errors"
)

// Pipeline executes stages in order with hook support.  Transitions are
// strictly forward; a stage is never retried at this level (retries live
// inside the adapters).
type Pipeline struct {
	stages []core.Stage
	hooks  []core.Hook
	logger core.Logger
}

// New returns a Pipeline over the given stages.
func New(stages ...core.Stage) *Pipeline {
	return &Pipeline{stages: stages, logger: core.NopLogger{}}
}

// AddHook registers an observer.
func (p *Pipeline) AddHook(h core.Hook) *Pipeline {
	p.hooks = append(p.hooks, h)
	return p
}

// SetLogger attaches a structured logger.
func (p *Pipeline) SetLogger(l core.Logger) *Pipeline {
	if l != nil {
		p.logger = l
	}
	return p
}

// Run drives one invocation.  A Degraded outcome is logged and the pipeline
// continues with the degraded artifact.  A Fatal outcome aborts the
// remaining stages; the last good artifact is still returned alongside the
// error so the caller never receives nothing.
func (p *Pipeline) Run(ctx context.Context, pc *core.Context) (*core.Artifact, error) {
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return pc.Current, apperrors.Wrap(apperrors.CategoryPipeline, stage.Name(), err)
		}

		p.notifyBefore(ctx, stage.Name(), pc)
		start := time.Now()
		res := stage.Run(ctx, pc)
		elapsed := time.Since(start)
		pc.Timings[stage.Name()] = elapsed
		p.notifyAfter(ctx, stage.Name(), pc, elapsed, res)

		switch res.Status {
		case core.StatusSuccess:
			pc.Current = res.Artifact
		case core.StatusDegraded:
			pc.Warn(stage.Name(), res.Reason)
			p.logger.Warn("pipeline.stage.degraded",
				"run_id", pc.RunID,
				"stage", stage.Name(),
				"reason", res.Reason,
			)
			pc.Current = res.Artifact
		case core.StatusFatal:
			p.logger.Error("pipeline.stage.fatal",
				"run_id", pc.RunID,
				"stage", stage.Name(),
				"error", res.Err.Error(),
			)
			return pc.Current, apperrors.Wrap(apperrors.CategoryPipeline, stage.Name(), res.Err)
		}
	}
	return pc.Current, nil
}

func (p *Pipeline) notifyBefore(ctx context.Context, name string, pc *core.Context) {
	for _, h := range p.hooks {
		h.BeforeStage(ctx, name, pc)
	}
}

func (p *Pipeline) notifyAfter(ctx context.Context, name string, pc *core.Context, d time.Duration, res core.Result) {
	for _, h := range p.hooks {
		h.AfterStage(ctx, name, pc, d, res)
	}
}
