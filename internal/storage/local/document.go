// Package local implements a local filesystem backend for the archive store.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	protectedMode = 0o444
	writableMode  = 0o644
)

// ErrLocked is returned when another process holds the store lock.
var ErrLocked = errors.New("store file is locked by another process")

// Config captures the parameters for the local filesystem backend.
type Config struct {
	// Path is the store document location.
	Path string `mapstructure:"path" yaml:"path"`
	// Writable leaves the document user-writable instead of read-only.
	Writable bool `mapstructure:"writable" yaml:"writable"`
}

// Document reads and atomically replaces one file on disk. It holds an
// exclusive lock on "<path>.lock" until Close.
type Document struct {
	path string
	mode os.FileMode
	lock *flock.Flock
}

// Open acquires the store lock and returns the backend. The document itself
// need not exist yet.
func Open(cfg Config) (*Document, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	path := filepath.Clean(cfg.Path)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("store path %s is a directory", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}

	mode := os.FileMode(protectedMode)
	if cfg.Writable {
		mode = writableMode
	}
	return &Document{path: path, mode: mode, lock: lock}, nil
}

// Read returns the document contents. A missing document yields an error
// wrapping fs.ErrNotExist.
func (d *Document) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.path, err)
	}
	return data, nil
}

// Write replaces the document through a temp file and rename so readers never
// observe a partial write.
func (d *Document) Write(ctx context.Context, data []byte) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(d.path), "."+filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), d.mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("replace %s: %w", d.path, err)
	}
	return nil
}

// Location returns the document path.
func (d *Document) Location() string {
	return d.path
}

// Close releases the store lock.
func (d *Document) Close() error {
	if err := d.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %w", d.lock.Path(), err)
	}
	return nil
}
