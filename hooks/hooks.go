// Package hooks provides production-ready Hook and Logger implementations.
package hooks

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prodimg/studio/core"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...interface{}) { s.log.Debug(msg, fields...) }
func (s *SlogLogger) Info(msg string, fields ...interface{})  { s.log.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...interface{})  { s.log.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...interface{}) { s.log.Error(msg, fields...) }

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs before/after each pipeline stage.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeStage(_ context.Context, stageName string, pc *core.Context) {
	h.logger.Debug("pipeline.stage.start",
		"run_id", pc.RunID,
		"stage", stageName,
	)
}

func (h *LoggingHook) AfterStage(_ context.Context, stageName string, pc *core.Context, d time.Duration, res core.Result) {
	switch res.Status {
	case core.StatusFatal:
		h.logger.Error("pipeline.stage.error",
			"run_id", pc.RunID,
			"stage", stageName,
			"duration_ms", d.Milliseconds(),
			"error", res.Err.Error(),
		)
	case core.StatusDegraded:
		h.logger.Warn("pipeline.stage.degraded",
			"run_id", pc.RunID,
			"stage", stageName,
			"duration_ms", d.Milliseconds(),
			"reason", res.Reason,
		)
	default:
		out := int64(0)
		if res.Artifact != nil {
			out = res.Artifact.Meta.SizeBytes
		}
		h.logger.Debug("pipeline.stage.done",
			"run_id", pc.RunID,
			"stage", stageName,
			"duration_ms", d.Milliseconds(),
			"output_bytes", out,
		)
	}
}

// ── In-memory metrics collector ───────────────────────────────────────────────

// InMemoryMetrics accumulates metrics atomically; safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.RWMutex

	stageDurationsMs map[string]int64 // cumulative ms per stage
	stageCalls       map[string]int64 // call count per stage
	stageWarnings    map[string]int64
	stageErrors      map[string]int64

	totalOutputB int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		stageDurationsMs: make(map[string]int64),
		stageCalls:       make(map[string]int64),
		stageWarnings:    make(map[string]int64),
		stageErrors:      make(map[string]int64),
	}
}

func (m *InMemoryMetrics) RecordStageTime(stageName string, d time.Duration) {
	m.mu.Lock()
	m.stageDurationsMs[stageName] += d.Milliseconds()
	m.stageCalls[stageName]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordWarning(stageName string) {
	m.mu.Lock()
	m.stageWarnings[stageName]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordError(stageName string) {
	m.mu.Lock()
	m.stageErrors[stageName]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordOutputBytes(bytes int64) {
	atomic.AddInt64(&m.totalOutputB, bytes)
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		StageDurationsMs: make(map[string]int64, len(m.stageDurationsMs)),
		StageCalls:       make(map[string]int64, len(m.stageCalls)),
		StageWarnings:    make(map[string]int64, len(m.stageWarnings)),
		StageErrors:      make(map[string]int64, len(m.stageErrors)),
		TotalOutputB:     atomic.LoadInt64(&m.totalOutputB),
	}
	for k, v := range m.stageDurationsMs {
		snap.StageDurationsMs[k] = v
	}
	for k, v := range m.stageCalls {
		snap.StageCalls[k] = v
	}
	for k, v := range m.stageWarnings {
		snap.StageWarnings[k] = v
	}
	for k, v := range m.stageErrors {
		snap.StageErrors[k] = v
	}
	return snap
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	StageDurationsMs map[string]int64
	StageCalls       map[string]int64
	StageWarnings    map[string]int64
	StageErrors      map[string]int64
	TotalOutputB     int64
}

// ── Metrics hook ──────────────────────────────────────────────────────────────

// MetricsHook feeds pipeline events into a MetricsCollector.
type MetricsHook struct {
	collector core.MetricsCollector
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c core.MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforeStage(_ context.Context, _ string, _ *core.Context) {}

func (h *MetricsHook) AfterStage(_ context.Context, stageName string, _ *core.Context, d time.Duration, res core.Result) {
	h.collector.RecordStageTime(stageName, d)
	switch res.Status {
	case core.StatusFatal:
		h.collector.RecordError(stageName)
	case core.StatusDegraded:
		h.collector.RecordWarning(stageName)
	}
	if res.Artifact != nil {
		h.collector.RecordOutputBytes(res.Artifact.Meta.SizeBytes)
	}
}
