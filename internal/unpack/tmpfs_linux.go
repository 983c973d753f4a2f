//go:build linux

package unpack

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// Tmpfs mounts a size-limited tmpfs on Path for the duration of a run.
// A mount that already exists is reused and left in place.
type Tmpfs struct {
	Path string
	// Size is passed as the tmpfs size option, e.g. "4g".
	Size string

	mounted bool
}

func (t *Tmpfs) Dir() string { return t.Path }

func (t *Tmpfs) Acquire(context.Context) error {
	if err := os.MkdirAll(t.Path, 0o755); err != nil {
		return fmt.Errorf("create tmpfs mount point: %w", err)
	}
	if isTmpfs(t.Path) {
		log.Debug("tmpfs already mounted", "path", t.Path)
		return nil
	}
	data := ""
	if t.Size != "" {
		data = "size=" + t.Size
	}
	if err := unix.Mount("tmpfs", t.Path, "tmpfs", unix.MS_NOSUID|unix.MS_NODEV, data); err != nil {
		return fmt.Errorf("mount tmpfs on %s: %w", t.Path, err)
	}
	t.mounted = true
	log.Info("Mounted tmpfs", "path", t.Path, "size", t.Size)
	return nil
}

func (t *Tmpfs) Release() error {
	if !t.mounted {
		return nil
	}
	if err := unix.Unmount(t.Path, 0); err != nil {
		return fmt.Errorf("unmount tmpfs %s: %w", t.Path, err)
	}
	t.mounted = false
	log.Info("Unmounted tmpfs", "path", t.Path)
	return nil
}

func isTmpfs(path string) bool {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false
	}
	return st.Type == unix.TMPFS_MAGIC
}
