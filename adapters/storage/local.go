// Package storage persists pipeline artifacts: a local working-directory
// store for run files, an optional Azure blob publisher for finished
// images, and a janitor that sweeps stale run files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prodimg/studio/core"
	apperrors "github.com/prodimg/studio/errors"
)

// Local stores run artifacts on the local filesystem.  Concurrent
// invocations are safe as long as they use distinct names; the pipeline
// derives names from each run's ksuid.
type Local struct {
	rootDir     string
	permissions os.FileMode
}

// NewLocal creates a Local store rooted at dir.
func NewLocal(dir string, perm os.FileMode) (*Local, error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: mkdir %s: %w", dir, err)
	}
	return &Local{rootDir: dir, permissions: perm}, nil
}

// Root returns the store's root directory.
func (l *Local) Root() string { return l.rootDir }

func (l *Local) absPath(name string) string {
	return filepath.Join(l.rootDir, filepath.Base(filepath.Clean(name)))
}

func (l *Local) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put", err)
	}
	if err := os.WriteFile(l.absPath(name), data, l.permissions); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put", err)
	}
	return nil
}

func (l *Local) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.get", err)
	}
	data, err := os.ReadFile(l.absPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.New(apperrors.CategoryStorage, "local.get",
				fmt.Errorf("artifact not found: %s", name))
		}
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.get", err)
	}
	return data, nil
}

func (l *Local) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.delete", err)
	}
	if err := os.Remove(l.absPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.delete", err)
	}
	return nil
}

var _ core.ArtifactStore = (*Local)(nil)
