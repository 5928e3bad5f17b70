package tracker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/events"
	"github.com/vinayprograms/taskkit/export"
	"github.com/vinayprograms/taskkit/integrity"
	"github.com/vinayprograms/taskkit/logging"
	"github.com/vinayprograms/taskkit/metrics"
	"github.com/vinayprograms/taskkit/repo"
	"github.com/vinayprograms/taskkit/search"
	"github.com/vinayprograms/taskkit/store"
	"github.com/vinayprograms/taskkit/task"
)

// DefaultReopenWindow bounds how long after completion a task may
// return to pending.
const DefaultReopenWindow = 24 * time.Hour

// Config configures a tracker.
type Config struct {
	// Store is the storage backend. Required.
	Store store.Store

	// ReopenWindow bounds completed-to-pending transitions.
	// Default: DefaultReopenWindow.
	ReopenWindow time.Duration

	// Clock supplies the current time. Default: time.Now.
	Clock func() time.Time

	// Logger for background diagnostics.
	Logger *logging.Logger

	// SearchIndexPath is the on-disk index directory. Empty keeps the
	// full-text index in memory.
	SearchIndexPath string

	// HistorySize bounds the retained repair run summaries.
	// Default: integrity.DefaultHistorySize.
	HistorySize int
}

// Tracker is the task service: the only mutation path for tasks. It
// enforces the lifecycle state machine, the dense ordering invariant,
// tag normalization, and duplicate prevention, and emits exactly one
// event per successful mutation.
type Tracker struct {
	// mu serializes mutations so the ordering invariant holds after
	// every operation. Reads go straight to the repository.
	mu sync.Mutex

	repo    *repo.Repository
	stream  *events.Stream
	engine  *integrity.Engine
	history *integrity.History
	index   *search.Index

	clock        func() time.Time
	log          *logging.Logger
	reopenWindow time.Duration

	schedMu    sync.Mutex
	schedulers map[string]*integrity.Scheduler

	closed atomic.Bool
}

// New loads the record set from the store and assembles the service.
// The search index is rebuilt from the loaded set and then kept
// current through the event stream.
func New(cfg Config) (*Tracker, error) {
	if cfg.Store == nil {
		return nil, errors.Validation("tracker requires a store")
	}
	if cfg.ReopenWindow <= 0 {
		cfg.ReopenWindow = DefaultReopenWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}

	r, err := repo.New(cfg.Store)
	if err != nil {
		return nil, err
	}

	idx, err := search.New(search.Config{Path: cfg.SearchIndexPath, Logger: cfg.Logger})
	if err != nil {
		return nil, err
	}
	if err := idx.Rebuild(r.All()); err != nil {
		idx.Close()
		return nil, err
	}

	t := &Tracker{
		repo:         r,
		stream:       events.NewStream(),
		engine:       integrity.NewEngine(r, cfg.Clock, cfg.Logger),
		history:      integrity.NewHistory(cfg.HistorySize),
		index:        idx,
		clock:        cfg.Clock,
		log:          cfg.Logger.WithComponent("tracker"),
		reopenWindow: cfg.ReopenWindow,
		schedulers:   make(map[string]*integrity.Scheduler),
	}
	t.stream.Subscribe(idx.HandleEvent)
	return t, nil
}

// Add creates a task in pending state at the end of the order
// sequence. Content must be non-empty after normalization, and no
// pending or active task may already carry the same normalized
// content.
func (t *Tracker) Add(content string, tags []string) (*task.Task, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if task.NormalizeContent(content) == "" {
		return nil, errors.Validation("task content must not be empty")
	}
	if dup := t.repo.FindDuplicate(content); dup != nil {
		return nil, errors.DuplicateContent(
			fmt.Sprintf("content duplicates %s task %s", dup.State, dup.ID),
			errors.WithTaskID(dup.ID))
	}

	now := t.clock()
	created := &task.Task{
		ID:        uuid.New().String(),
		Content:   content,
		State:     task.StatePending,
		Order:     t.repo.NextOrder(),
		Tags:      task.NormalizeTags(tags),
		CreatedAt: now,
		UpdatedAt: now,
	}
	persistErr := t.repo.Create(created)
	if !committed(persistErr) {
		return nil, persistErr
	}

	t.emit(events.Event{Kind: events.KindTaskAdded, Task: created.Clone()})
	if persistErr != nil {
		return nil, persistErr
	}
	return created.Clone(), nil
}

// Start moves a pending task to active.
func (t *Tracker) Start(id string) (*task.Task, error) {
	return t.transition(id, task.StateActive, events.KindTaskStarted)
}

// Complete moves an active task to completed and stamps the completion
// time.
func (t *Tracker) Complete(id string) (*task.Task, error) {
	return t.transition(id, task.StateCompleted, events.KindTaskCompleted)
}

// Reopen returns a completed task to pending. Valid only within the
// reopen window, measured inclusively from the completion timestamp.
func (t *Tracker) Reopen(id string) (*task.Task, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	tk, err := t.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if tk.State != task.StateCompleted {
		return nil, errors.InvalidTransition(
			fmt.Sprintf("cannot reopen a %s task", tk.State),
			errors.WithTaskID(id))
	}

	now := t.clock()
	if tk.CompletedAt != nil && now.Sub(*tk.CompletedAt) > t.reopenWindow {
		return nil, errors.OutsideReopenWindow(
			fmt.Sprintf("completed %s ago, window is %s", now.Sub(*tk.CompletedAt).Round(time.Second), t.reopenWindow),
			errors.WithTaskID(id))
	}

	tk.State = task.StatePending
	tk.CompletedAt = nil
	tk.UpdatedAt = now
	persistErr := t.repo.Update(tk)
	if !committed(persistErr) {
		return nil, persistErr
	}

	t.emit(events.Event{Kind: events.KindTaskReopened, Task: tk.Clone()})
	if persistErr != nil {
		return nil, persistErr
	}
	return tk.Clone(), nil
}

// Update is a partial edit of content and tags. Nil fields keep the
// current value; lifecycle state and order never change here.
type Update struct {
	Content *string
	Tags    *[]string
}

// Update edits a task's content and tags. A content change is checked
// for duplicates against pending and active tasks only; completed
// history never blocks an edit.
func (t *Tracker) Update(id string, upd Update) (*task.Task, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	tk, err := t.repo.Get(id)
	if err != nil {
		return nil, err
	}

	changed := false
	if upd.Content != nil {
		content := *upd.Content
		if task.NormalizeContent(content) == "" {
			return nil, errors.Validation("task content must not be empty", errors.WithTaskID(id))
		}
		if task.NormalizeContent(content) != task.NormalizeContent(tk.Content) {
			if dup := t.repo.FindDuplicate(content); dup != nil && dup.ID != id {
				return nil, errors.DuplicateContent(
					fmt.Sprintf("content duplicates %s task %s", dup.State, dup.ID),
					errors.WithTaskID(dup.ID))
			}
		}
		tk.Content = content
		changed = true
	}
	if upd.Tags != nil {
		tk.Tags = task.NormalizeTags(*upd.Tags)
		changed = true
	}
	if !changed {
		return tk, nil
	}

	tk.UpdatedAt = t.clock()
	persistErr := t.repo.Update(tk)
	if !committed(persistErr) {
		return nil, persistErr
	}

	t.emit(events.Event{Kind: events.KindTaskUpdated, Task: tk.Clone()})
	if persistErr != nil {
		return nil, persistErr
	}
	return tk.Clone(), nil
}

// Reorder moves one task to the given position in the non-archived
// sequence. Implemented as a full reordering so the same validation
// and the same single event apply.
func (t *Tracker) Reorder(id string, position int) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.repo.NonArchived()
	ids := make([]string, 0, len(current))
	found := false
	for _, tk := range current {
		if tk.ID == id {
			found = true
			continue
		}
		ids = append(ids, tk.ID)
	}
	if !found {
		return errors.InvalidOrder("unknown or archived task "+id, errors.WithTaskID(id))
	}
	idx := position - task.OrderBase
	if idx < 0 || idx > len(ids) {
		return errors.InvalidOrder(
			fmt.Sprintf("position %d outside [%d, %d]", position, task.OrderBase, task.OrderBase+len(ids)),
			errors.WithTaskID(id))
	}
	ids = append(ids[:idx], append([]string{id}, ids[idx:]...)...)
	return t.reorderAllLocked(ids)
}

// ReorderAll applies a complete target ordering: the ids must be a
// permutation of every non-archived task. Fails with INVALID_ORDER on
// a duplicate, an unknown or archived id, or a length mismatch,
// leaving the existing order untouched.
func (t *Tracker) ReorderAll(ids []string) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reorderAllLocked(ids)
}

func (t *Tracker) reorderAllLocked(ids []string) error {
	current := t.repo.NonArchived()
	if len(ids) != len(current) {
		return errors.InvalidOrder(
			fmt.Sprintf("ordering names %d tasks, %d are orderable", len(ids), len(current)))
	}

	known := make(map[string]*task.Task, len(current))
	for _, tk := range current {
		known[tk.ID] = tk
	}

	now := t.clock()
	seen := make(map[string]bool, len(ids))
	var changed []*task.Task
	reordered := make([]*task.Task, 0, len(ids))
	for i, id := range ids {
		if seen[id] {
			return errors.InvalidOrder("duplicate task in ordering: "+id, errors.WithTaskID(id))
		}
		seen[id] = true
		tk, ok := known[id]
		if !ok {
			return errors.InvalidOrder("unknown or archived task "+id, errors.WithTaskID(id))
		}
		want := task.OrderBase + i
		if tk.Order != want {
			tk.Order = want
			tk.UpdatedAt = now
			changed = append(changed, tk)
		}
		reordered = append(reordered, tk)
	}
	if len(changed) == 0 {
		return nil
	}
	persistErr := t.repo.UpdateAll(changed)
	if !committed(persistErr) {
		return persistErr
	}

	clones := make([]*task.Task, len(reordered))
	for i, tk := range reordered {
		clones[i] = tk.Clone()
	}
	t.emit(events.Event{Kind: events.KindTasksReordered, Tasks: clones})
	return persistErr
}

// Archive moves a completed task out of the ordering domain and
// re-densifies the remaining sequence in the same logical step.
func (t *Tracker) Archive(id string) (*task.Task, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	tk, err := t.repo.Get(id)
	if err != nil {
		return nil, err
	}
	archived, err := t.archiveLocked([]*task.Task{tk})
	if err != nil {
		return nil, err
	}
	return archived[0], nil
}

// ArchiveCompleted archives every completed task in one logical step,
// emitting the single batch archive event. Returns the archived tasks;
// an empty set is not an error.
func (t *Tracker) ArchiveCompleted() ([]*task.Task, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	completed := t.repo.ByState(task.StateCompleted)
	if len(completed) == 0 {
		return nil, nil
	}
	return t.archiveLocked(completed)
}

// archiveLocked archives the given tasks and renumbers the survivors
// atomically. Callers hold the mutation lock.
func (t *Tracker) archiveLocked(targets []*task.Task) ([]*task.Task, error) {
	now := t.clock()
	archiving := make(map[string]bool, len(targets))
	batch := make([]*task.Task, 0, len(targets))
	for _, tk := range targets {
		if tk.State != task.StateCompleted {
			return nil, errors.InvalidTransition(
				fmt.Sprintf("cannot archive a %s task", tk.State),
				errors.WithTaskID(tk.ID))
		}
		tk.State = task.StateArchived
		tk.UpdatedAt = now
		archiving[tk.ID] = true
		batch = append(batch, tk)
	}

	// Re-densify the survivors.
	for i, tk := range t.remainingAfter(archiving) {
		want := task.OrderBase + i
		if tk.Order != want {
			tk.Order = want
			tk.UpdatedAt = now
			batch = append(batch, tk)
		}
	}
	persistErr := t.repo.UpdateAll(batch)
	if !committed(persistErr) {
		return nil, persistErr
	}

	result := make([]*task.Task, len(targets))
	clones := make([]*task.Task, len(targets))
	for i, tk := range targets {
		result[i] = tk.Clone()
		clones[i] = tk.Clone()
	}
	t.emit(events.Event{Kind: events.KindTasksArchived, Tasks: clones})
	if persistErr != nil {
		return nil, persistErr
	}
	return result, nil
}

// Delete removes a task unconditionally and re-densifies the order
// sequence. Irreversible, and deliberately silent on the event stream.
func (t *Tracker) Delete(id string) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.repo.Get(id); err != nil {
		return err
	}
	persistErr := t.repo.Delete(id)
	if !committed(persistErr) {
		return persistErr
	}

	now := t.clock()
	var changed []*task.Task
	for i, tk := range t.repo.NonArchived() {
		want := task.OrderBase + i
		if tk.Order != want {
			tk.Order = want
			tk.UpdatedAt = now
			changed = append(changed, tk)
		}
	}
	if len(changed) > 0 {
		if err := t.repo.UpdateAll(changed); err != nil {
			if !committed(err) {
				return err
			}
			if persistErr == nil {
				persistErr = err
			}
		}
	}

	if err := t.index.Delete(id); err != nil {
		t.log.Warn("removing deleted task from index failed", map[string]interface{}{
			"task": id, "error": err.Error(),
		})
	}
	return persistErr
}

// transition applies a single-edge lifecycle move and emits its event.
func (t *Tracker) transition(id string, to task.State, kind events.Kind) (*task.Task, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	tk, err := t.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if !task.CanTransition(tk.State, to) {
		return nil, errors.InvalidTransition(
			fmt.Sprintf("cannot move a %s task to %s", tk.State, to),
			errors.WithTaskID(id))
	}

	now := t.clock()
	tk.State = to
	tk.UpdatedAt = now
	if to == task.StateCompleted {
		stamp := now
		tk.CompletedAt = &stamp
	}
	persistErr := t.repo.Update(tk)
	if !committed(persistErr) {
		return nil, persistErr
	}

	t.emit(events.Event{Kind: kind, Task: tk.Clone()})
	if persistErr != nil {
		return nil, persistErr
	}
	return tk.Clone(), nil
}

// committed reports whether a repo mutation landed in memory despite
// the returned error. The storage layer surfaces write failures after
// the in-memory commit, so the stream and search index must still
// observe the change; the caller gets the error back and retries
// persistence with Flush.
func committed(err error) bool {
	return err == nil || errors.Category(err) == errors.CategoryStorage
}

// emit stamps and delivers one event. Callers hold the mutation lock;
// handlers run synchronously after the in-memory commit and before
// the debounced write hits disk.
func (t *Tracker) emit(e events.Event) {
	e.Timestamp = t.clock()
	t.stream.Emit(e)
}

// remainingAfter lists non-archived tasks excluding the given ids, in
// order position.
func (t *Tracker) remainingAfter(exclude map[string]bool) []*task.Task {
	var out []*task.Task
	for _, tk := range t.repo.NonArchived() {
		if !exclude[tk.ID] {
			out = append(out, tk)
		}
	}
	return out
}

func (t *Tracker) checkOpen() error {
	if t.closed.Load() {
		return errors.Storage("tracker closed", nil)
	}
	return nil
}

// Get returns a copy of one task.
func (t *Tracker) Get(id string) (*task.Task, error) {
	return t.repo.Get(id)
}

// ListOptions filter List output. Zero value lists every non-archived
// task in order position.
type ListOptions struct {
	// State restricts to one lifecycle state.
	State task.State

	// Tags restricts to tasks carrying every listed tag (normalized
	// before matching).
	Tags []string

	// Text restricts to tasks whose content or tags match the query,
	// via the full-text index.
	Text string

	// IncludeArchived adds archived tasks, which are otherwise
	// excluded unless State names them.
	IncludeArchived bool
}

// List returns copies of tasks matching every given filter.
func (t *Tracker) List(opts ListOptions) ([]*task.Task, error) {
	if opts.State != "" && !opts.State.Valid() {
		return nil, errors.Validation(fmt.Sprintf("unknown state %q", opts.State))
	}

	var candidates []*task.Task
	switch {
	case opts.State != "":
		candidates = t.repo.ByState(opts.State)
	case opts.IncludeArchived:
		candidates = t.repo.All()
	default:
		candidates = t.repo.NonArchived()
	}

	if len(opts.Tags) > 0 {
		tags := task.NormalizeTags(opts.Tags)
		var filtered []*task.Task
		for _, tk := range candidates {
			if hasAll(tk, tags) {
				filtered = append(filtered, tk)
			}
		}
		candidates = filtered
	}

	if opts.Text != "" {
		ids, err := t.index.Query(opts.Text, 0)
		if err != nil {
			return nil, err
		}
		matched := make(map[string]bool, len(ids))
		for _, id := range ids {
			matched[id] = true
		}
		var filtered []*task.Task
		for _, tk := range candidates {
			if matched[tk.ID] {
				filtered = append(filtered, tk)
			}
		}
		candidates = filtered
	}

	return candidates, nil
}

// Active returns copies of active tasks in order position.
func (t *Tracker) Active() []*task.Task {
	return t.repo.ByState(task.StateActive)
}

func hasAll(tk *task.Task, tags []string) bool {
	for _, tag := range tags {
		if !tk.HasTag(tag) {
			return false
		}
	}
	return true
}

// Metrics computes aggregate statistics from the current record set.
func (t *Tracker) Metrics() *metrics.Metrics {
	return metrics.Compute(t.repo.All(), t.clock())
}

// Snapshot assembles an export snapshot of the current record set.
func (t *Tracker) Snapshot() *export.Snapshot {
	return export.BuildSnapshot(t.repo.All(), t.clock())
}

// Search returns copies of tasks matching the free-text query, best
// match first.
func (t *Tracker) Search(text string, limit int) ([]*task.Task, error) {
	ids, err := t.index.Query(text, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*task.Task, 0, len(ids))
	for _, id := range ids {
		tk, err := t.repo.Get(id)
		if err != nil {
			continue
		}
		out = append(out, tk)
	}
	return out, nil
}

// Subscribe registers an event handler and returns its subscription ID.
func (t *Tracker) Subscribe(h events.Handler) string {
	return t.stream.Subscribe(h)
}

// Unsubscribe removes an event handler.
func (t *Tracker) Unsubscribe(id string) {
	t.stream.Unsubscribe(id)
}

// Flush forces any pending debounced write to disk now.
func (t *Tracker) Flush(ctx context.Context) error {
	return t.repo.Flush(ctx)
}

// Close stops every repair schedule, flushes pending state, and
// releases the store and the search index. The tracker accepts no
// work afterwards.
func (t *Tracker) Close(ctx context.Context) error {
	if t.closed.Swap(true) {
		return nil
	}

	t.schedMu.Lock()
	for id, s := range t.schedulers {
		s.Stop()
		delete(t.schedulers, id)
	}
	t.schedMu.Unlock()

	if err := t.index.Close(); err != nil {
		t.log.Warn("closing search index failed", map[string]interface{}{"error": err.Error()})
	}
	return t.repo.Close(ctx)
}
