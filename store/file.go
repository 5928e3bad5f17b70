package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/logging"
	"github.com/vinayprograms/taskkit/task"
)

// FileConfig configures a file-backed store.
type FileConfig struct {
	// Path is the destination task file.
	Path string

	// DebounceInterval is how long rapid saves coalesce before one
	// physical write. Default: DefaultDebounceInterval.
	DebounceInterval time.Duration

	// RetryAttempts is how many times a failed write is tried before
	// the failure surfaces. Default: DefaultRetryAttempts.
	RetryAttempts int

	// RetryDelay is the fixed delay between attempts.
	// Default: DefaultRetryDelay.
	RetryDelay time.Duration

	// Logger receives retry and flush diagnostics. Optional.
	Logger *logging.Logger
}

func (c FileConfig) withDefaults() FileConfig {
	if c.DebounceInterval <= 0 {
		c.DebounceInterval = DefaultDebounceInterval
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Logger == nil {
		c.Logger = logging.New()
	}
	return c
}

// FileStore implements Store against a single JSON file. A background
// writer owns exclusive write access to the path: mutations signal it
// dirty, the debounce window coalesces bursts into one physical write,
// and each write lands atomically via a temporary file renamed over
// the destination. The previous file survives one generation as
// <path>.bak and is consulted by the load recovery path.
type FileStore struct {
	path          string
	debounce      time.Duration
	retryAttempts int
	retryDelay    time.Duration
	log           *logging.Logger

	mu       sync.Mutex
	pending  []*task.Task
	dirty    bool
	gen      uint64
	writeErr error

	signalCh chan struct{}
	flushCh  chan chan error
	stopCh   chan struct{}
	doneCh   chan struct{}
	closed   atomic.Bool
}

// NewFileStore creates a file-backed store and starts its writer.
func NewFileStore(cfg FileConfig) (*FileStore, error) {
	if cfg.Path == "" {
		return nil, errors.Validation("file store requires a path")
	}
	cfg = cfg.withDefaults()

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Storage("creating store directory", err,
				errors.WithMetadata("path", dir))
		}
	}

	s := &FileStore{
		path:          cfg.Path,
		debounce:      cfg.DebounceInterval,
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		log:           cfg.Logger.WithComponent("filestore"),
		signalCh:      make(chan struct{}, 1),
		flushCh:       make(chan chan error),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}

	go s.writeLoop()
	return s, nil
}

// Load reads the record set from disk, migrating legacy formats and
// recovering from the backup artifact when the primary is unreadable
// or fails envelope validation.
func (s *FileStore) Load() ([]*task.Task, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return s.recover(fmt.Errorf("reading %s: %w", s.path, err))
		}
		// No primary. A crash between the backup and final rename
		// leaves only the .bak; otherwise this is a fresh store.
		if bak, bakErr := os.ReadFile(s.backupPath()); bakErr == nil {
			records, decErr := decodeRecords(bak)
			if decErr == nil {
				s.log.Warn("primary file missing, recovered from backup",
					map[string]interface{}{"path": s.path})
				return records, nil
			}
		}
		return nil, nil
	}

	records, decErr := decodeRecords(data)
	if decErr != nil {
		return s.recover(decErr)
	}
	return records, nil
}

// recover attempts the backup artifact before giving up. Failure is
// loud: an empty result here would look like irreversible data loss.
func (s *FileStore) recover(cause error) ([]*task.Task, error) {
	bak, err := os.ReadFile(s.backupPath())
	if err == nil {
		records, decErr := decodeRecords(bak)
		if decErr == nil {
			s.log.Warn("primary file unusable, recovered from backup",
				map[string]interface{}{"path": s.path, "cause": cause})
			return records, nil
		}
		cause = fmt.Errorf("%w; backup also unusable: %v", cause, decErr)
	}
	return nil, errors.Storage("loading task file", cause,
		errors.WithMetadata("path", s.path))
}

// decodeRecords parses file bytes into records. A bare JSON array is
// the pre-envelope legacy format and loads directly; it is rewritten
// as a v1 envelope on the next save. Envelope files are validated
// against the embedded schema before decoding.
func decodeRecords(data []byte) ([]*task.Task, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("task file is empty")
	}

	if trimmed[0] == '[' {
		var records []*task.Task
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("parsing legacy task file: %w", err)
		}
		return records, nil
	}

	var raw interface{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("parsing task file: %w", err)
	}
	if err := envelopeSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("task file failed envelope validation: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Version != EnvelopeVersion {
		return nil, fmt.Errorf("unsupported task file version %q (supported: %s)",
			env.Version, EnvelopeVersion)
	}
	return env.Records, nil
}

// Save accepts a snapshot for persistence and signals the writer. The
// call never blocks on disk I/O; a sticky error from an exhausted
// earlier write is returned so the caller knows persistence is behind,
// while the snapshot is still queued for the next attempt.
func (s *FileStore) Save(records []*task.Task) error {
	if s.closed.Load() {
		return errors.Storage("file store closed", nil)
	}

	s.mu.Lock()
	s.pending = cloneRecords(records)
	s.dirty = true
	s.gen++
	err := s.writeErr
	s.mu.Unlock()

	select {
	case s.signalCh <- struct{}{}:
	default:
	}
	return err
}

// Flush forces any pending write to disk before returning.
func (s *FileStore) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return errors.Storage("file store closed", nil)
	}

	reply := make(chan error, 1)
	select {
	case s.flushCh <- reply:
	case <-s.stopCh:
		return errors.Storage("file store closed", nil)
	case <-ctx.Done():
		return errors.Storage("flush interrupted", ctx.Err())
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return errors.Storage("flush interrupted", ctx.Err())
	}
}

// Close stops the writer, flushing any pending write first.
func (s *FileStore) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.stopCh)

	select {
	case <-s.doneCh:
	case <-ctx.Done():
		return errors.Storage("close interrupted", ctx.Err())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeErr
}

// writeLoop is the background writer. It owns the destination path:
// dirty signals re-arm the debounce timer, explicit flushes and
// shutdown bypass it.
func (s *FileStore) writeLoop() {
	defer close(s.doneCh)

	timer := time.NewTimer(s.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	disarm := func() {
		if armed && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		armed = false
	}

	for {
		select {
		case <-s.signalCh:
			disarm()
			timer.Reset(s.debounce)
			armed = true

		case <-timer.C:
			armed = false
			s.flushNow()

		case reply := <-s.flushCh:
			disarm()
			reply <- s.flushNow()

		case <-s.stopCh:
			disarm()
			s.flushNow()
			return
		}
	}
}

// flushNow writes the pending snapshot if one is waiting. The dirty
// flag is only cleared when no newer save arrived during the write.
func (s *FileStore) flushNow() error {
	s.mu.Lock()
	if !s.dirty {
		err := s.writeErr
		s.mu.Unlock()
		return err
	}
	records := s.pending
	gen := s.gen
	s.mu.Unlock()

	writeErr := s.writeWithRetry(records)

	s.mu.Lock()
	defer s.mu.Unlock()
	if writeErr != nil {
		s.writeErr = errors.Storage("persisting task file", writeErr,
			errors.WithMetadata("path", s.path))
		return s.writeErr
	}
	s.writeErr = nil
	if s.gen == gen {
		s.dirty = false
	}
	return nil
}

// writeWithRetry attempts the physical write a bounded number of times
// with a fixed inter-attempt delay.
func (s *FileStore) writeWithRetry(records []*task.Task) error {
	var lastErr error
	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		err := s.writeFile(records)
		if err == nil {
			if attempt > 1 {
				s.log.Info("write recovered", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err
		s.log.Warn("write failed", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		})
		if attempt < s.retryAttempts {
			time.Sleep(s.retryDelay)
		}
	}
	s.log.Error("write retries exhausted", map[string]interface{}{
		"attempts": s.retryAttempts,
		"error":    lastErr.Error(),
	})
	return lastErr
}

// writeFile performs one atomic write: marshal, write to a temporary
// file, preserve the previous generation as .bak, rename into place.
func (s *FileStore) writeFile(records []*task.Task) error {
	env := Envelope{Version: EnvelopeVersion, Records: records}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}

	// Keep the previous generation for the recovery path. Best effort:
	// a missing backup only matters if the final rename also fails.
	if _, err := os.Stat(s.path); err == nil {
		if err := os.Rename(s.path, s.backupPath()); err != nil {
			s.log.Warn("backup rotation failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

func (s *FileStore) backupPath() string {
	return s.path + ".bak"
}
