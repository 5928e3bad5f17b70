package metrics

import (
	"testing"
	"time"

	"github.com/vinayprograms/taskkit/task"
)

var testNow = time.Date(2026, 2, 6, 15, 0, 0, 0, time.UTC)

func taskAt(id string, state task.State, created time.Time, completedAfter time.Duration) *task.Task {
	t := &task.Task{
		ID:        id,
		Content:   "task " + id,
		State:     state,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if state == task.StateCompleted || state == task.StateArchived {
		completed := created.Add(completedAfter)
		t.CompletedAt = &completed
		t.UpdatedAt = completed
	}
	return t
}

func TestComputeEmpty(t *testing.T) {
	m := Compute(nil, testNow)
	if m.Total != 0 {
		t.Errorf("Total = %d, want 0", m.Total)
	}
	if m.CompletionRate != 0 {
		t.Errorf("CompletionRate = %f, want 0", m.CompletionRate)
	}
	if m.OldestPending != nil {
		t.Errorf("OldestPending = %v, want nil", m.OldestPending)
	}
	if m.ByState[task.StatePending] != 0 {
		t.Error("ByState should carry zero entries for every state")
	}
}

func TestComputeStateCountsAndRate(t *testing.T) {
	records := []*task.Task{
		taskAt("t-1", task.StatePending, testNow.Add(-72*time.Hour), 0),
		taskAt("t-2", task.StateActive, testNow.Add(-48*time.Hour), 0),
		taskAt("t-3", task.StateCompleted, testNow.Add(-24*time.Hour), 2*time.Hour),
		taskAt("t-4", task.StateArchived, testNow.Add(-240*time.Hour), 4*time.Hour),
	}

	m := Compute(records, testNow)
	if m.Total != 4 {
		t.Errorf("Total = %d, want 4", m.Total)
	}
	if m.ByState[task.StatePending] != 1 || m.ByState[task.StateActive] != 1 ||
		m.ByState[task.StateCompleted] != 1 || m.ByState[task.StateArchived] != 1 {
		t.Errorf("ByState = %v", m.ByState)
	}
	if m.CompletionRate != 0.5 {
		t.Errorf("CompletionRate = %f, want 0.5", m.CompletionRate)
	}
}

func TestComputeAvgCompletionTime(t *testing.T) {
	records := []*task.Task{
		taskAt("t-1", task.StateCompleted, testNow.Add(-24*time.Hour), 2*time.Hour),
		taskAt("t-2", task.StateCompleted, testNow.Add(-24*time.Hour), 4*time.Hour),
	}
	m := Compute(records, testNow)
	if m.AvgCompletionTime != 3*time.Hour {
		t.Errorf("AvgCompletionTime = %v, want 3h", m.AvgCompletionTime)
	}
}

func TestComputeOldestPending(t *testing.T) {
	records := []*task.Task{
		taskAt("newer", task.StatePending, testNow.Add(-time.Hour), 0),
		taskAt("older", task.StatePending, testNow.Add(-100*time.Hour), 0),
		taskAt("done", task.StateCompleted, testNow.Add(-200*time.Hour), time.Hour),
	}
	m := Compute(records, testNow)
	if m.OldestPending == nil || m.OldestPending.ID != "older" {
		t.Errorf("OldestPending = %v, want older", m.OldestPending)
	}

	// The returned task is a copy
	m.OldestPending.Content = "mutated"
	if records[1].Content == "mutated" {
		t.Error("OldestPending must be a defensive copy")
	}
}

func TestComputeActivityWindows(t *testing.T) {
	records := []*task.Task{
		taskAt("today", task.StateCompleted, testNow.Add(-2*time.Hour), time.Hour),
		taskAt("this-week", task.StateCompleted, testNow.Add(-3*24*time.Hour), time.Hour),
		taskAt("old", task.StateCompleted, testNow.Add(-30*24*time.Hour), time.Hour),
	}
	m := Compute(records, testNow)

	if m.CreatedToday != 1 {
		t.Errorf("CreatedToday = %d, want 1", m.CreatedToday)
	}
	if m.CompletedToday != 1 {
		t.Errorf("CompletedToday = %d, want 1", m.CompletedToday)
	}
	if m.CreatedThisWeek != 2 {
		t.Errorf("CreatedThisWeek = %d, want 2", m.CreatedThisWeek)
	}
	if m.CompletedThisWeek != 2 {
		t.Errorf("CompletedThisWeek = %d, want 2", m.CompletedThisWeek)
	}
}

func TestComputeDoesNotMutate(t *testing.T) {
	records := []*task.Task{
		taskAt("t-1", task.StatePending, testNow.Add(-time.Hour), 0),
	}
	before := records[0].Clone()
	Compute(records, testNow)
	after := records[0]
	if after.Content != before.Content || after.State != before.State ||
		after.Order != before.Order || !after.CreatedAt.Equal(before.CreatedAt) {
		t.Error("Compute must not mutate the snapshot")
	}
}
