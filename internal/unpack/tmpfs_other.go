//go:build !linux

package unpack

import (
	"context"
	"errors"
)

// Tmpfs is only supported on linux.
type Tmpfs struct {
	Path string
	Size string
}

func (t *Tmpfs) Dir() string { return t.Path }

func (t *Tmpfs) Acquire(context.Context) error {
	return errors.New("tmpfs workspaces are only supported on linux")
}

func (t *Tmpfs) Release() error { return nil }
