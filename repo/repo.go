package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/store"
	"github.com/vinayprograms/taskkit/task"
)

// Repository is the storage-agnostic data-access layer. It owns the
// single in-memory record set: every read hands out defensive copies,
// every mutation replaces the stored copy and schedules a save through
// the backing store. Duplicate detection and the order-sequence
// invariant are checked here against the full current record set, so
// alternate storage backends enforce identical guarantees.
type Repository struct {
	mu    sync.RWMutex
	store store.Store
	tasks map[string]*task.Task
}

// New loads the record set from the store and wraps it in a repository.
func New(st store.Store) (*Repository, error) {
	records, err := st.Load()
	if err != nil {
		return nil, err
	}

	tasks := make(map[string]*task.Task, len(records))
	for _, t := range records {
		tasks[t.ID] = t.Clone()
	}

	return &Repository{
		store: st,
		tasks: tasks,
	}, nil
}

// Create adds a new task and persists the set.
func (r *Repository) Create(t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[t.ID]; exists {
		return errors.Validation("task ID already exists", errors.WithTaskID(t.ID))
	}
	r.tasks[t.ID] = t.Clone()
	return r.persistLocked()
}

// Get returns a copy of the task, or a NOT_FOUND error.
func (r *Repository) Get(id string) (*task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, errors.NotFound("no task with ID "+id, errors.WithTaskID(id))
	}
	return t.Clone(), nil
}

// All returns copies of every task: non-archived first in order
// position, archived after, most recently updated first.
func (r *Repository) All() []*task.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// ByState returns copies of tasks in the given state, in order position.
func (r *Repository) ByState(state task.State) []*task.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*task.Task
	for _, t := range r.tasks {
		if t.State == state {
			result = append(result, t.Clone())
		}
	}
	sortTasks(result)
	return result
}

// ByTags returns copies of tasks carrying every one of the given
// normalized tags.
func (r *Repository) ByTags(tags []string) []*task.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*task.Task
	for _, t := range r.tasks {
		if hasAllTags(t, tags) {
			result = append(result, t.Clone())
		}
	}
	sortTasks(result)
	return result
}

// Update replaces an existing task and persists the set.
func (r *Repository) Update(t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; !ok {
		return errors.NotFound("no task with ID "+t.ID, errors.WithTaskID(t.ID))
	}
	r.tasks[t.ID] = t.Clone()
	return r.persistLocked()
}

// UpdateAll replaces several existing tasks in one logical step with a
// single persist. Used by reorder and batch archive, where partial
// application would break the ordering invariant.
func (r *Repository) UpdateAll(tasks []*task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tasks {
		if _, ok := r.tasks[t.ID]; !ok {
			return errors.NotFound("no task with ID "+t.ID, errors.WithTaskID(t.ID))
		}
	}
	for _, t := range tasks {
		r.tasks[t.ID] = t.Clone()
	}
	return r.persistLocked()
}

// Delete removes a task and persists the set.
func (r *Repository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return errors.NotFound("no task with ID "+id, errors.WithTaskID(id))
	}
	delete(r.tasks, id)
	return r.persistLocked()
}

// Count returns the number of stored tasks.
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// NonArchived returns copies of every task still in the ordering
// domain, in order position.
func (r *Repository) NonArchived() []*task.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nonArchivedLocked()
}

// OrderSequence returns the sorted order values of non-archived tasks.
// A dense store yields OrderBase, OrderBase+1, ... with no gaps or
// duplicates.
func (r *Repository) OrderSequence() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var orders []int
	for _, t := range r.tasks {
		if t.State != task.StateArchived {
			orders = append(orders, t.Order)
		}
	}
	sort.Ints(orders)
	return orders
}

// NextOrder returns the order value for the next created task.
func (r *Repository) NextOrder() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, t := range r.tasks {
		if t.State != task.StateArchived {
			count++
		}
	}
	return task.OrderBase + count
}

// FindDuplicate returns a copy of a pending or active task with the
// same normalized content, or nil. Completed and archived tasks are
// outside the duplicate scope.
func (r *Repository) FindDuplicate(content string) *task.Task {
	norm := task.NormalizeContent(content)
	if norm == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tasks {
		if t.State != task.StatePending && t.State != task.StateActive {
			continue
		}
		if task.NormalizeContent(t.Content) == norm {
			return t.Clone()
		}
	}
	return nil
}

// Flush forces any pending store write to complete.
func (r *Repository) Flush(ctx context.Context) error {
	return r.store.Flush(ctx)
}

// Close flushes and releases the backing store.
func (r *Repository) Close(ctx context.Context) error {
	return r.store.Close(ctx)
}

// persistLocked saves the full record set. Callers hold the write lock.
func (r *Repository) persistLocked() error {
	records := make([]*task.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		records = append(records, t)
	}
	sortTasks(records)
	return r.store.Save(records)
}

// snapshotLocked copies and sorts the full set. Callers hold a lock.
func (r *Repository) snapshotLocked() []*task.Task {
	result := make([]*task.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		result = append(result, t.Clone())
	}
	sortTasks(result)
	return result
}

func (r *Repository) nonArchivedLocked() []*task.Task {
	var result []*task.Task
	for _, t := range r.tasks {
		if t.State != task.StateArchived {
			result = append(result, t.Clone())
		}
	}
	sortTasks(result)
	return result
}

// sortTasks orders non-archived tasks by position ahead of archived
// tasks, which sort by most recent update. Ties break on ID for
// stable output.
func sortTasks(tasks []*task.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		aArch := a.State == task.StateArchived
		bArch := b.State == task.StateArchived
		if aArch != bArch {
			return !aArch
		}
		if aArch {
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
			return a.ID < b.ID
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
}

func hasAllTags(t *task.Task, tags []string) bool {
	for _, tag := range tags {
		if !t.HasTag(tag) {
			return false
		}
	}
	return true
}
