package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/task"
)

// MemoryStore implements Store using in-memory storage. Identical
// semantics to the file-backed store minus the I/O, used for fast,
// deterministic testing.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*task.Task
	closed  atomic.Bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a deep copy of the current record set.
func (s *MemoryStore) Load() ([]*task.Task, error) {
	if s.closed.Load() {
		return nil, errors.Storage("memory store closed", nil)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records), nil
}

// Save replaces the record set with a deep copy of the given records.
func (s *MemoryStore) Save(records []*task.Task) error {
	if s.closed.Load() {
		return errors.Storage("memory store closed", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = cloneRecords(records)
	return nil
}

// Flush is a no-op: saves take effect immediately.
func (s *MemoryStore) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return errors.Storage("memory store closed", nil)
	}
	return nil
}

// Close marks the store closed. Further operations fail.
func (s *MemoryStore) Close(ctx context.Context) error {
	s.closed.Store(true)
	return nil
}
