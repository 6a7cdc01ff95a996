package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/prodimg/studio/core"
)

func TestInMemoryMetrics_Snapshot(t *testing.T) {
	m := NewInMemoryMetrics()
	m.RecordStageTime("normalize", 20*time.Millisecond)
	m.RecordStageTime("normalize", 30*time.Millisecond)
	m.RecordStageTime("inpaint", 100*time.Millisecond)
	m.RecordWarning("remove_background")
	m.RecordError("inpaint")
	m.RecordOutputBytes(1024)
	m.RecordOutputBytes(2048)

	snap := m.Snapshot()
	assert.EqualValues(t, 50, snap.StageDurationsMs["normalize"])
	assert.EqualValues(t, 2, snap.StageCalls["normalize"])
	assert.EqualValues(t, 1, snap.StageCalls["inpaint"])
	assert.EqualValues(t, 1, snap.StageWarnings["remove_background"])
	assert.EqualValues(t, 1, snap.StageErrors["inpaint"])
	assert.EqualValues(t, 3072, snap.TotalOutputB)
}

func TestInMemoryMetrics_ConcurrentRecording(t *testing.T) {
	m := NewInMemoryMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordStageTime("stage", time.Millisecond)
				m.RecordOutputBytes(1)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.EqualValues(t, 1600, snap.StageCalls["stage"])
	assert.EqualValues(t, 1600, snap.TotalOutputB)
}

func TestMetricsHook_FeedsCollector(t *testing.T) {
	m := NewInMemoryMetrics()
	hook := NewMetricsHook(m)
	pc := core.NewContext("run", 64)

	hook.AfterStage(context.Background(), "normalize", pc, 5*time.Millisecond,
		core.Success(&core.Artifact{Meta: core.Metadata{SizeBytes: 512}}))
	hook.AfterStage(context.Background(), "remove_background", pc, time.Millisecond,
		core.Degraded(nil, "vendor down"))
	hook.AfterStage(context.Background(), "inpaint", pc, time.Millisecond,
		core.Fatal(errors.New("boom")))

	snap := m.Snapshot()
	assert.EqualValues(t, 1, snap.StageCalls["normalize"])
	assert.EqualValues(t, 512, snap.TotalOutputB)
	assert.EqualValues(t, 1, snap.StageWarnings["remove_background"])
	assert.EqualValues(t, 1, snap.StageErrors["inpaint"])
}
