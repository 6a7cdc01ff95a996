package storage

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/prodimg/studio/core"
)

// Janitor periodically deletes run artifacts older than the TTL.  The
// pipeline owns only its working files; nothing else should persist in the
// working directory.
type Janitor struct {
	dir    string
	ttl    time.Duration
	cron   *cron.Cron
	logger core.Logger
}

// NewJanitor creates a Janitor sweeping dir on the given cron schedule
// (e.g. "@hourly").
func NewJanitor(dir string, ttl time.Duration, schedule string, logger core.Logger) (*Janitor, error) {
	if logger == nil {
		logger = core.NopLogger{}
	}
	j := &Janitor{dir: dir, ttl: ttl, cron: cron.New(), logger: logger}
	if _, err := j.cron.AddFunc(schedule, j.Sweep); err != nil {
		return nil, err
	}
	return j, nil
}

// Start begins the sweep schedule in the background.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule; a running sweep finishes first.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep removes files whose modification time is older than the TTL.
func (j *Janitor) Sweep() {
	cutoff := time.Now().Add(-j.ttl)
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		j.logger.Warn("janitor.read_dir", "dir", j.dir, "error", err.Error())
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(j.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		j.logger.Info("janitor.swept", "dir", j.dir, "removed", removed)
	}
}
