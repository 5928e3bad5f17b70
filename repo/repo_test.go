package repo

import (
	"context"
	"testing"
	"time"

	"github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/store"
	"github.com/vinayprograms/taskkit/task"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := New(store.NewMemoryStore())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func makeTask(id, content string, state task.State, order int) *task.Task {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	t := &task.Task{
		ID:        id,
		Content:   content,
		State:     state,
		Order:     order,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if state == task.StateCompleted || state == task.StateArchived {
		completed := now.Add(time.Hour)
		t.CompletedAt = &completed
	}
	return t
}

func TestRepositoryCRUD(t *testing.T) {
	r := newTestRepo(t)

	created := makeTask("t-1", "Fix login bug", task.StatePending, 0)
	if err := r.Create(created); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := r.Get("t-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != "Fix login bug" {
		t.Errorf("Content = %q, want 'Fix login bug'", got.Content)
	}

	got.Content = "Rewrite auth"
	if err := r.Update(got); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	updated, _ := r.Get("t-1")
	if updated.Content != "Rewrite auth" {
		t.Errorf("Content after update = %q", updated.Content)
	}

	if err := r.Delete("t-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := r.Get("t-1"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Get after delete should be NOT_FOUND, got %v", err)
	}
}

func TestRepositoryNotFound(t *testing.T) {
	r := newTestRepo(t)

	if _, err := r.Get("missing"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Get = %v, want NOT_FOUND", err)
	}
	if err := r.Update(makeTask("missing", "x", task.StatePending, 0)); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Update = %v, want NOT_FOUND", err)
	}
	if err := r.Delete("missing"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Delete = %v, want NOT_FOUND", err)
	}
}

func TestRepositoryCreateDuplicateID(t *testing.T) {
	r := newTestRepo(t)
	r.Create(makeTask("t-1", "one", task.StatePending, 0))
	if err := r.Create(makeTask("t-1", "two", task.StatePending, 1)); err == nil {
		t.Error("creating a duplicate ID should fail")
	}
}

func TestRepositoryDefensiveCopies(t *testing.T) {
	r := newTestRepo(t)
	r.Create(makeTask("t-1", "original", task.StatePending, 0))

	got, _ := r.Get("t-1")
	got.Content = "mutated"

	again, _ := r.Get("t-1")
	if again.Content != "original" {
		t.Error("mutating a returned task must not change the stored record")
	}
}

func TestRepositoryQueries(t *testing.T) {
	r := newTestRepo(t)
	pending := makeTask("t-1", "one", task.StatePending, 0)
	pending.Tags = []string{"auth", "bug"}
	active := makeTask("t-2", "two", task.StateActive, 1)
	active.Tags = []string{"bug"}
	archived := makeTask("t-3", "three", task.StateArchived, 0)

	for _, tk := range []*task.Task{pending, active, archived} {
		if err := r.Create(tk); err != nil {
			t.Fatalf("Create %s failed: %v", tk.ID, err)
		}
	}

	if got := r.ByState(task.StateActive); len(got) != 1 || got[0].ID != "t-2" {
		t.Errorf("ByState(active) = %v", got)
	}

	// Tag filter is AND
	if got := r.ByTags([]string{"bug"}); len(got) != 2 {
		t.Errorf("ByTags(bug) = %d tasks, want 2", len(got))
	}
	if got := r.ByTags([]string{"auth", "bug"}); len(got) != 1 || got[0].ID != "t-1" {
		t.Errorf("ByTags(auth,bug) = %v", got)
	}

	if got := r.NonArchived(); len(got) != 2 {
		t.Errorf("NonArchived = %d tasks, want 2", len(got))
	}

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("All = %d tasks, want 3", len(all))
	}
	if all[len(all)-1].ID != "t-3" {
		t.Errorf("archived tasks should sort after non-archived, got %v last", all[len(all)-1].ID)
	}
}

func TestRepositoryOrderSequence(t *testing.T) {
	r := newTestRepo(t)
	r.Create(makeTask("t-1", "one", task.StatePending, 0))
	r.Create(makeTask("t-2", "two", task.StateActive, 1))
	r.Create(makeTask("t-3", "three", task.StateArchived, 7)) // outside the domain

	seq := r.OrderSequence()
	if len(seq) != 2 || seq[0] != 0 || seq[1] != 1 {
		t.Errorf("OrderSequence = %v, want [0 1]", seq)
	}
	if next := r.NextOrder(); next != 2 {
		t.Errorf("NextOrder = %d, want 2", next)
	}
}

func TestRepositoryFindDuplicate(t *testing.T) {
	r := newTestRepo(t)
	r.Create(makeTask("t-1", "Fix Login Bug", task.StatePending, 0))
	r.Create(makeTask("t-2", "old chore", task.StateCompleted, 1))

	// Normalization: case and whitespace insensitive
	if dup := r.FindDuplicate("  fix   login bug "); dup == nil || dup.ID != "t-1" {
		t.Errorf("FindDuplicate = %v, want t-1", dup)
	}

	// Completed tasks are outside the duplicate scope
	if dup := r.FindDuplicate("old chore"); dup != nil {
		t.Errorf("completed task should not count as duplicate, got %v", dup)
	}

	if dup := r.FindDuplicate("brand new"); dup != nil {
		t.Errorf("FindDuplicate of unseen content = %v, want nil", dup)
	}
}

func TestRepositoryUpdateAllAtomic(t *testing.T) {
	r := newTestRepo(t)
	r.Create(makeTask("t-1", "one", task.StatePending, 0))
	r.Create(makeTask("t-2", "two", task.StatePending, 1))

	a, _ := r.Get("t-1")
	b, _ := r.Get("t-2")
	a.Order, b.Order = 1, 0
	if err := r.UpdateAll([]*task.Task{a, b}); err != nil {
		t.Fatalf("UpdateAll failed: %v", err)
	}

	seq := r.OrderSequence()
	if len(seq) != 2 || seq[0] != 0 || seq[1] != 1 {
		t.Errorf("OrderSequence after swap = %v, want [0 1]", seq)
	}

	// One unknown ID fails the whole batch before any application
	c := makeTask("missing", "ghost", task.StatePending, 5)
	if err := r.UpdateAll([]*task.Task{a, c}); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("UpdateAll with unknown ID = %v, want NOT_FOUND", err)
	}
	got, _ := r.Get("t-1")
	if got.Order != 1 {
		t.Error("failed batch must not partially apply")
	}
}

func TestRepositoryPersistsThroughStore(t *testing.T) {
	st := store.NewMemoryStore()
	r, err := New(st)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	r.Create(makeTask("t-1", "persisted", task.StatePending, 0))

	// A second repository over the same store sees the record
	r2, err := New(st)
	if err != nil {
		t.Fatalf("New over existing store failed: %v", err)
	}
	got, err := r2.Get("t-1")
	if err != nil {
		t.Fatalf("Get from reloaded repo failed: %v", err)
	}
	if got.Content != "persisted" {
		t.Errorf("Content = %q, want 'persisted'", got.Content)
	}

	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
