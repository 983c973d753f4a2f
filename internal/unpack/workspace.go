package unpack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is the scratch directory lifecycle around one ingestion run.
// Release must be called on every exit path once Acquire succeeded.
type Workspace interface {
	Dir() string
	Acquire(ctx context.Context) error
	Release() error
}

// PlainDir is a Workspace backed by an ordinary directory. Release removes the
// extracted files when Cleanup is set.
type PlainDir struct {
	Path    string
	Cleanup bool
}

func (d *PlainDir) Dir() string { return d.Path }

func (d *PlainDir) Acquire(context.Context) error {
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return fmt.Errorf("create workspace %s: %w", d.Path, err)
	}
	return nil
}

func (d *PlainDir) Release() error {
	if !d.Cleanup {
		return nil
	}
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return fmt.Errorf("read workspace %s: %w", d.Path, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(d.Path, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// WithWorkspace acquires ws, runs fn and releases ws whatever fn returns.
func WithWorkspace(ctx context.Context, ws Workspace, fn func(dir string) error) (err error) {
	if err := ws.Acquire(ctx); err != nil {
		return err
	}
	defer func() {
		if relErr := ws.Release(); relErr != nil {
			if err == nil {
				err = relErr
			} else {
				err = fmt.Errorf("%w (release: %v)", err, relErr)
			}
		}
	}()
	return fn(ws.Dir())
}
