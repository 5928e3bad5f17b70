package task

import (
	"sort"
	"strings"
	"time"
)

// OrderBase is the first order value assigned to a non-archived task.
// Order values form a dense, duplicate-free sequence starting here;
// archived tasks do not participate in the ordering domain.
const OrderBase = 0

// State represents the lifecycle state of a task.
type State string

const (
	// StatePending indicates the task is waiting to be started.
	StatePending State = "pending"

	// StateActive indicates the task is in progress.
	StateActive State = "active"

	// StateCompleted indicates the task has been finished.
	StateCompleted State = "completed"

	// StateArchived indicates the task is retired. Terminal and
	// non-deleting: archived tasks remain in the store but leave
	// the ordering domain.
	StateArchived State = "archived"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Valid returns true if the state is a member of the legal variant set.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateActive, StateCompleted, StateArchived:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no forward transition leaves the state.
func (s State) IsTerminal() bool {
	return s == StateArchived
}

// transitions is the legal lifecycle graph. The completed→pending edge
// is additionally time-boxed by the reopen window, which is enforced by
// the tracker, not here.
var transitions = map[State][]State{
	StatePending:   {StateActive},
	StateActive:    {StateCompleted},
	StateCompleted: {StateArchived, StatePending},
	StateArchived:  {},
}

// CanTransition reports whether the lifecycle graph permits moving
// from one state to another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Task represents a single trackable unit of work.
type Task struct {
	// ID is the unique identifier, generated on creation.
	ID string `json:"id"`

	// Content is the free-text description of the work.
	Content string `json:"content"`

	// State is the current lifecycle state.
	State State `json:"state"`

	// Order is the user-facing priority position. Dense and globally
	// unique among non-archived tasks, starting at OrderBase.
	Order int `json:"order"`

	// Tags are normalized labels: trimmed, lowercased, deduplicated,
	// sorted, empties dropped.
	Tags []string `json:"tags,omitempty"`

	// Metadata is an open bag of auxiliary values. It is opaque to
	// business logic and only inspected at the serialization boundary
	// and by integrity scanning.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the task was last modified.
	UpdatedAt time.Time `json:"updated_at"`

	// CompletedAt is when the task was completed, if it has been.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone creates a deep copy of the task.
func (t *Task) Clone() *Task {
	clone := &Task{
		ID:        t.ID,
		Content:   t.Content,
		State:     t.State,
		Order:     t.Order,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}

	if t.Tags != nil {
		clone.Tags = make([]string, len(t.Tags))
		copy(clone.Tags, t.Tags)
	}

	if t.Metadata != nil {
		clone.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			clone.Metadata[k] = v
		}
	}

	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		clone.CompletedAt = &completed
	}

	return clone
}

// HasTag reports whether the task carries the given normalized tag.
func (t *Task) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}

// NormalizeContent canonicalizes content for duplicate comparison:
// lowercased with runs of whitespace collapsed to single spaces.
func NormalizeContent(content string) string {
	return strings.ToLower(strings.Join(strings.Fields(content), " "))
}

// NormalizeTags canonicalizes a tag list: trim, lowercase, drop
// empties, deduplicate, sort. Idempotent by construction.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(tags))
	var result []string
	for _, tag := range tags {
		norm := strings.ToLower(strings.TrimSpace(tag))
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		result = append(result, norm)
	}
	sort.Strings(result)
	return result
}
