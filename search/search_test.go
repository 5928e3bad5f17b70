package search

import (
	"fmt"
	"testing"
	"time"

	"github.com/vinayprograms/taskkit/events"
	"github.com/vinayprograms/taskkit/task"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New(Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func testTask(id, content string, tags ...string) *task.Task {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return &task.Task{
		ID:        id,
		Content:   content,
		State:     task.StatePending,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestQueryMatchesContent(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.Upsert(testTask("a", "buy oat milk")); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := idx.Upsert(testTask("b", "walk the dog")); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	ids, err := idx.Query("milk", 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("expected [a], got %v", ids)
	}
}

func TestQueryMatchesTags(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.Upsert(testTask("a", "fix the fence", "garden")); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := idx.Upsert(testTask("b", "water plants", "chores")); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	ids, err := idx.Query("garden", 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("expected [a], got %v", ids)
	}
}

func TestUpsertReplacesDocument(t *testing.T) {
	idx := newTestIndex(t)
	tk := testTask("a", "buy milk")
	if err := idx.Upsert(tk); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	tk.Content = "buy bread"
	if err := idx.Upsert(tk); err != nil {
		t.Fatalf("reindex failed: %v", err)
	}

	if ids, _ := idx.Query("milk", 10); len(ids) != 0 {
		t.Fatalf("stale content still matches: %v", ids)
	}
	ids, err := idx.Query("bread", 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("expected [a], got %v", ids)
	}
}

func TestDelete(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.Upsert(testTask("a", "buy milk")); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := idx.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if ids, _ := idx.Query("milk", 10); len(ids) != 0 {
		t.Fatalf("deleted task still matches: %v", ids)
	}
}

func TestRebuildReplacesContents(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.Upsert(testTask("stale", "old entry")); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	records := []*task.Task{
		testTask("a", "buy milk"),
		testTask("b", "walk the dog"),
	}
	if err := idx.Rebuild(records); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	count, err := idx.DocCount()
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 documents after rebuild, got %d", count)
	}
	if ids, _ := idx.Query("old", 10); len(ids) != 0 {
		t.Fatalf("stale document survived rebuild: %v", ids)
	}
}

func TestHandleEventMaintainsIndex(t *testing.T) {
	idx := newTestIndex(t)

	idx.HandleEvent(events.Event{Kind: events.KindTaskAdded, Task: testTask("a", "buy milk")})
	ids, err := idx.Query("milk", 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("added task not indexed: %v", ids)
	}

	updated := testTask("a", "buy bread")
	idx.HandleEvent(events.Event{Kind: events.KindTaskUpdated, Task: updated})
	if got, _ := idx.Query("milk", 10); len(got) != 0 {
		t.Fatalf("update event left stale content: %v", got)
	}

	archivedA := testTask("a", "buy bread")
	archivedA.State = task.StateArchived
	archivedB := testTask("b", "walk the dog")
	archivedB.State = task.StateArchived
	idx.HandleEvent(events.Event{
		Kind:  events.KindTasksArchived,
		Tasks: []*task.Task{archivedA, archivedB},
	})
	count, err := idx.DocCount()
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("archive batch should reindex both tasks, got %d documents", count)
	}

	// Events without an indexed payload are ignored.
	idx.HandleEvent(events.Event{Kind: events.KindTasksReordered})
	idx.HandleEvent(events.Event{Kind: events.KindTaskAdded})
}

func TestRebuildDropsStaleBeyondPageSize(t *testing.T) {
	idx := newTestIndex(t)
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("old-%02d", i)
		if err := idx.Upsert(testTask(id, "stale entry "+id)); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	if err := idx.Rebuild([]*task.Task{testTask("keep", "only survivor")}); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	count, err := idx.DocCount()
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 document after rebuild, got %d", count)
	}

	ids, err := idx.Query("stale", 50)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("stale documents survived rebuild: %v", ids)
	}
}

func TestRebuildEmptyIndex(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.Rebuild([]*task.Task{testTask("a", "first entry")}); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	count, err := idx.DocCount()
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 document, got %d", count)
	}
}
