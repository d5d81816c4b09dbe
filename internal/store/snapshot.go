package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/sattrack/internal/record"
)

// Snapshot is a read-mostly view of the store file for the HTTP server.
// It reloads the file when its modification time or size changes.
// The returned store must not be mutated.
type Snapshot struct {
	file    *File
	current atomic.Pointer[snapshotEntry]
	mu      sync.Mutex // serializes reloads
}

type snapshotEntry struct {
	store    *record.Store
	modTime  time.Time
	size     int64
	loadedAt time.Time
}

// NewSnapshot creates a Snapshot over f.
func NewSnapshot(f *File) *Snapshot {
	return &Snapshot{file: f}
}

// Get returns the current store, reloading it if the file changed.
// A corrupt file is served as an empty store together with the load error.
// An unreadable file yields a nil store and is retried on the next call.
func (s *Snapshot) Get() (*record.Store, error) {
	info, err := os.Stat(s.file.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat store file: %w", err)
	}

	var modTime time.Time
	var size int64
	if info != nil {
		modTime, size = info.ModTime(), info.Size()
	}

	if e := s.current.Load(); e != nil && e.modTime.Equal(modTime) && e.size == size {
		return e.store, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.current.Load(); e != nil && e.modTime.Equal(modTime) && e.size == size {
		return e.store, nil
	}

	st, loadErr := s.file.Load()
	if st == nil {
		return nil, loadErr
	}
	s.current.Store(&snapshotEntry{store: st, modTime: modTime, size: size, loadedAt: time.Now()})
	return st, loadErr
}

// LoadedAt returns when the store was last read from disk, or the zero time.
func (s *Snapshot) LoadedAt() time.Time {
	if e := s.current.Load(); e != nil {
		return e.loadedAt
	}
	return time.Time{}
}
