// Package metrics computes aggregate task statistics. Metrics are
// derived, not stored: each computation works over a point-in-time
// snapshot of the record set and never mutates it.
package metrics

import (
	"time"

	"github.com/vinayprograms/taskkit/task"
)

// Metrics is the aggregate view of a record set at one instant.
type Metrics struct {
	// Total is the number of tasks in all states.
	Total int `json:"total"`

	// ByState counts tasks per lifecycle state.
	ByState map[task.State]int `json:"by_state"`

	// CompletionRate is the fraction of tasks that reached completed
	// or archived, in [0, 1]. Zero for an empty set.
	CompletionRate float64 `json:"completion_rate"`

	// AvgCompletionTime is the mean time from creation to completion
	// among tasks with a completion timestamp.
	AvgCompletionTime time.Duration `json:"avg_completion_time"`

	// OldestPending is a copy of the pending task with the earliest
	// creation time, nil when nothing is pending.
	OldestPending *task.Task `json:"oldest_pending,omitempty"`

	// CreatedToday / CompletedToday count activity since local midnight.
	CreatedToday   int `json:"created_today"`
	CompletedToday int `json:"completed_today"`

	// CreatedThisWeek / CompletedThisWeek count activity in the last
	// seven days.
	CreatedThisWeek   int `json:"created_this_week"`
	CompletedThisWeek int `json:"completed_this_week"`
}

// Compute derives metrics from a snapshot of the record set.
func Compute(records []*task.Task, now time.Time) *Metrics {
	m := &Metrics{
		Total: len(records),
		ByState: map[task.State]int{
			task.StatePending:   0,
			task.StateActive:    0,
			task.StateCompleted: 0,
			task.StateArchived:  0,
		},
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := now.Add(-7 * 24 * time.Hour)

	var completedCount int
	var totalCompletionTime time.Duration

	for _, t := range records {
		m.ByState[t.State]++

		if t.State == task.StatePending {
			if m.OldestPending == nil || t.CreatedAt.Before(m.OldestPending.CreatedAt) {
				m.OldestPending = t.Clone()
			}
		}

		if !t.CreatedAt.Before(dayStart) {
			m.CreatedToday++
		}
		if !t.CreatedAt.Before(weekStart) {
			m.CreatedThisWeek++
		}

		if t.CompletedAt != nil {
			completedCount++
			if elapsed := t.CompletedAt.Sub(t.CreatedAt); elapsed > 0 {
				totalCompletionTime += elapsed
			}
			if !t.CompletedAt.Before(dayStart) {
				m.CompletedToday++
			}
			if !t.CompletedAt.Before(weekStart) {
				m.CompletedThisWeek++
			}
		}
	}

	if m.Total > 0 {
		resolved := m.ByState[task.StateCompleted] + m.ByState[task.StateArchived]
		m.CompletionRate = float64(resolved) / float64(m.Total)
	}
	if completedCount > 0 {
		m.AvgCompletionTime = totalCompletionTime / time.Duration(completedCount)
	}

	return m
}
