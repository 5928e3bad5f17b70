package store

import (
	"context"
	"time"

	"github.com/vinayprograms/taskkit/task"
)

// Defaults for the file-backed store.
const (
	// DefaultDebounceInterval is how long rapid saves coalesce before
	// one physical write.
	DefaultDebounceInterval = 250 * time.Millisecond

	// DefaultRetryAttempts is how many times a failed write is tried
	// before surfacing a storage error.
	DefaultRetryAttempts = 3

	// DefaultRetryDelay is the fixed delay between write attempts.
	DefaultRetryDelay = 100 * time.Millisecond
)

// EnvelopeVersion is the current on-disk format version tag.
const EnvelopeVersion = "v1"

// Envelope wraps persisted records with a schema version tag so future
// format changes can be migrated on load without breaking older files.
type Envelope struct {
	Version string       `json:"version"`
	Records []*task.Task `json:"records"`
}

// Store is the durable record store contract shared by all backends.
type Store interface {
	// Load returns the full record set with best-effort recovery from
	// partial or corrupt data. A missing store yields an empty set; an
	// unrecoverable store fails loudly rather than silently returning
	// an empty set.
	Load() ([]*task.Task, error)

	// Save persists the full record set. File-backed stores coalesce
	// rapid saves within a debounce window; success means the snapshot
	// was accepted for persistence, not that bytes are on disk. A
	// sticky error from an exhausted earlier write surfaces here.
	Save(records []*task.Task) error

	// Flush forces any pending write to complete before returning.
	Flush(ctx context.Context) error

	// Close flushes pending state and releases resources.
	Close(ctx context.Context) error
}

// cloneRecords deep-copies a record slice so callers and the store
// never share mutable state.
func cloneRecords(records []*task.Task) []*task.Task {
	if records == nil {
		return nil
	}
	clones := make([]*task.Task, len(records))
	for i, t := range records {
		clones[i] = t.Clone()
	}
	return clones
}
