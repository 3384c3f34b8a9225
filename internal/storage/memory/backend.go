// Package memory keeps the archive store document in memory. It backs tests
// and dry runs.
package memory

import (
	"context"
	"fmt"
	"io/fs"
	"sync"
)

// Backend holds the most recent document written to it.
type Backend struct {
	mu       sync.Mutex
	data     []byte
	exists   bool
	writes   int
	writeErr error
}

// New returns an empty Backend.
func New() *Backend {
	return &Backend{}
}

// NewWithDocument returns a Backend pre-populated with data.
func NewWithDocument(data []byte) *Backend {
	return &Backend{data: append([]byte(nil), data...), exists: true}
}

// Read returns a copy of the stored document or fs.ErrNotExist.
func (b *Backend) Read(context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.exists {
		return nil, fmt.Errorf("memory document: %w", fs.ErrNotExist)
	}
	return append([]byte(nil), b.data...), nil
}

// Write replaces the stored document.
func (b *Backend) Write(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	b.data = append([]byte(nil), data...)
	b.exists = true
	b.writes++
	return nil
}

// Writes reports how many successful writes have happened.
func (b *Backend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// Document returns a copy of the last written document.
func (b *Backend) Document() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

// FailWrites makes subsequent writes return err until called with nil.
func (b *Backend) FailWrites(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeErr = err
}

// Location identifies the backend in logs.
func (b *Backend) Location() string {
	return "memory://archive"
}
