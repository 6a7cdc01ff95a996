package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodimg/studio/core"
)

// scriptedStage returns a fixed Result and records that it ran.
type scriptedStage struct {
	name   string
	result func(pc *core.Context) core.Result
	ran    bool
}

func (s *scriptedStage) Name() string { return s.name }

func (s *scriptedStage) Run(_ context.Context, pc *core.Context) core.Result {
	s.ran = true
	return s.result(pc)
}

type recordingHook struct {
	before []string
	after  []string
}

func (h *recordingHook) BeforeStage(_ context.Context, name string, _ *core.Context) {
	h.before = append(h.before, name)
}

func (h *recordingHook) AfterStage(_ context.Context, name string, _ *core.Context, _ time.Duration, _ core.Result) {
	h.after = append(h.after, name)
}

func artifactNamed(name string) *core.Artifact {
	return &core.Artifact{Data: []byte(name), Format: core.FormatPNG}
}

func passStage(name string) *scriptedStage {
	return &scriptedStage{name: name, result: func(_ *core.Context) core.Result {
		return core.Success(artifactNamed(name))
	}}
}

func TestRun_AllSuccess(t *testing.T) {
	a, b, c := passStage("a"), passStage("b"), passStage("c")
	pc := core.NewContext("run-1", 64)
	pc.Current = artifactNamed("input")

	final, err := New(a, b, c).Run(context.Background(), pc)
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), final.Data, "last stage's artifact wins")
	assert.True(t, a.ran && b.ran && c.ran)
	assert.Empty(t, pc.Warnings)
	assert.Len(t, pc.Timings, 3)
}

func TestRun_DegradedContinues(t *testing.T) {
	degrading := &scriptedStage{name: "flaky", result: func(pc *core.Context) core.Result {
		return core.Degraded(pc.Current, "service unreachable")
	}}
	last := passStage("last")
	pc := core.NewContext("run-2", 64)
	pc.Current = artifactNamed("input")

	final, err := New(passStage("first"), degrading, last).Run(context.Background(), pc)
	require.NoError(t, err)
	assert.True(t, last.ran, "pipeline must continue past a degraded stage")
	assert.Equal(t, []byte("last"), final.Data)

	require.Len(t, pc.Warnings, 1)
	assert.Equal(t, "flaky", pc.Warnings[0].Stage)
	assert.Equal(t, "service unreachable", pc.Warnings[0].Reason)
}

func TestRun_FatalReturnsLastGoodArtifact(t *testing.T) {
	boom := &scriptedStage{name: "boom", result: func(_ *core.Context) core.Result {
		return core.Fatal(errors.New("service rejected the request"))
	}}
	after := passStage("after")
	pc := core.NewContext("run-3", 64)
	pc.Current = artifactNamed("input")

	final, err := New(passStage("first"), boom, after).Run(context.Background(), pc)
	require.Error(t, err)
	assert.False(t, after.ran, "stages after a fatal outcome must not run")
	require.NotNil(t, final, "the caller must still get the best-effort artifact")
	assert.Equal(t, []byte("first"), final.Data)
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	first := passStage("first")
	pc := core.NewContext("run-4", 64)
	pc.Current = artifactNamed("input")

	_, err := New(first).Run(ctx, pc)
	require.Error(t, err)
	assert.False(t, first.ran)
}

func TestRun_HooksObserveEveryStage(t *testing.T) {
	hook := &recordingHook{}
	pc := core.NewContext("run-5", 64)
	pc.Current = artifactNamed("input")

	_, err := New(passStage("a"), passStage("b")).AddHook(hook).Run(context.Background(), pc)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, hook.before)
	assert.Equal(t, []string{"a", "b"}, hook.after)
}
