package integrity

import (
	"encoding/json"
	"time"

	"github.com/vinayprograms/taskkit/repo"
	"github.com/vinayprograms/taskkit/task"
)

// remedy applies the fix for one anomaly. Anomaly types without an
// entry here have no automatic remediation and stay in Remaining.
type remedy func(e *Engine, a task.Anomaly, now time.Time) error

var remediations = map[task.AnomalyType]remedy{
	task.AnomalyOrderGap:             repairOrderSequence,
	task.AnomalyInvalidState:         repairInvalidState,
	task.AnomalyFutureTimestamp:      repairFutureTimestamp,
	task.AnomalyNegativeDuration:     repairNegativeDuration,
	task.AnomalyTimestampDrift:       repairTimestampDrift,
	task.AnomalyInconsistentMetadata: repairInconsistentMetadata,
	task.AnomalyOrphanedReference:    repairOrphanedReference,
	task.AnomalyMalformedData:        repairMalformedData,

	// Deliberately absent: duplicate_active_content and missing_field
	// need a human decision about which record is right.
}

// repairOrderSequence renumbers every non-archived task to a dense
// sequence, preserving the current relative order.
func repairOrderSequence(e *Engine, _ task.Anomaly, _ time.Time) error {
	tasks := e.repo.NonArchived()
	var changed []*task.Task
	for i, t := range tasks {
		want := task.OrderBase + i
		if t.Order != want {
			t.Order = want
			changed = append(changed, t)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	return e.repo.UpdateAll(changed)
}

// repairInvalidState coerces an unknown state to the nearest legal
// predecessor: completed when a completion timestamp exists, pending
// otherwise.
func repairInvalidState(e *Engine, a task.Anomaly, _ time.Time) error {
	t, err := e.repo.Get(a.TaskID)
	if err != nil {
		return err
	}
	if t.CompletedAt != nil {
		t.State = task.StateCompleted
	} else {
		t.State = task.StatePending
	}
	return e.repo.Update(t)
}

// repairFutureTimestamp clamps timestamps ahead of the clock.
func repairFutureTimestamp(e *Engine, a task.Anomaly, now time.Time) error {
	t, err := e.repo.Get(a.TaskID)
	if err != nil {
		return err
	}
	if t.CreatedAt.After(now) {
		t.CreatedAt = now
	}
	if t.UpdatedAt.After(now) {
		t.UpdatedAt = now
	}
	if t.CompletedAt != nil && t.CompletedAt.After(now) {
		clamped := now
		t.CompletedAt = &clamped
	}
	return e.repo.Update(t)
}

// repairNegativeDuration clamps a completion time that precedes the
// creation time.
func repairNegativeDuration(e *Engine, a task.Anomaly, _ time.Time) error {
	t, err := e.repo.Get(a.TaskID)
	if err != nil {
		return err
	}
	if t.CompletedAt != nil && t.CompletedAt.Before(t.CreatedAt) {
		clamped := t.CreatedAt
		t.CompletedAt = &clamped
	}
	return e.repo.Update(t)
}

// repairTimestampDrift aligns an update time that precedes creation.
func repairTimestampDrift(e *Engine, a task.Anomaly, _ time.Time) error {
	t, err := e.repo.Get(a.TaskID)
	if err != nil {
		return err
	}
	if t.UpdatedAt.Before(t.CreatedAt) {
		t.UpdatedAt = t.CreatedAt
	}
	return e.repo.Update(t)
}

// repairInconsistentMetadata reconciles state with the completion
// timestamp: resolved states get a backfilled stamp, unresolved states
// lose a stale one.
func repairInconsistentMetadata(e *Engine, a task.Anomaly, now time.Time) error {
	t, err := e.repo.Get(a.TaskID)
	if err != nil {
		return err
	}
	switch t.State {
	case task.StateCompleted, task.StateArchived:
		if t.CompletedAt == nil {
			stamp := t.UpdatedAt
			if stamp.IsZero() {
				stamp = now
			}
			t.CompletedAt = &stamp
		}
	case task.StatePending, task.StateActive:
		t.CompletedAt = nil
	}
	return e.repo.Update(t)
}

// repairOrphanedReference drops metadata entries referencing tasks
// that no longer exist.
func repairOrphanedReference(e *Engine, a task.Anomaly, _ time.Time) error {
	t, err := e.repo.Get(a.TaskID)
	if err != nil {
		return err
	}
	known := make(map[string]bool)
	for _, other := range e.repo.All() {
		known[other.ID] = true
	}
	for _, key := range repo.ReferenceKeys {
		if ref, ok := t.Metadata[key].(string); ok && ref != "" && !known[ref] {
			delete(t.Metadata, key)
		}
	}
	return e.repo.Update(t)
}

// repairMalformedData drops metadata entries that cannot be serialized.
func repairMalformedData(e *Engine, a task.Anomaly, _ time.Time) error {
	t, err := e.repo.Get(a.TaskID)
	if err != nil {
		return err
	}
	for key, value := range t.Metadata {
		if _, err := json.Marshal(value); err != nil {
			delete(t.Metadata, key)
		}
	}
	return e.repo.Update(t)
}
