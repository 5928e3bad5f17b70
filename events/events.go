package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/taskkit/task"
)

// Kind identifies an event type. Eight kinds are emitted, one per
// successful mutation.
type Kind string

const (
	KindTaskAdded      Kind = "task.added"
	KindTaskUpdated    Kind = "task.updated"
	KindTaskStarted    Kind = "task.started"
	KindTaskCompleted  Kind = "task.completed"
	KindTaskReopened   Kind = "task.reopened"
	KindTasksReordered Kind = "tasks.reordered"
	KindTasksArchived  Kind = "tasks.archived"
	KindRepairApplied  Kind = "integrity.repaired"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Event is a structured record of a state change, emitted synchronously
// at the point the mutation commits to the in-memory store and before
// the debounced write is scheduled.
type Event struct {
	// Kind identifies the event type.
	Kind Kind `json:"kind"`

	// Timestamp is when the mutation committed.
	Timestamp time.Time `json:"timestamp"`

	// Task carries a copy of the affected task for single-task events.
	Task *task.Task `json:"task,omitempty"`

	// Tasks carries copies of the affected tasks for batch events
	// (reorder, archive).
	Tasks []*task.Task `json:"tasks,omitempty"`

	// Details carries event-specific values, such as repair counts.
	Details map[string]any `json:"details,omitempty"`
}

// TaskID returns the ID of the affected task, or empty for batch events.
func (e Event) TaskID() string {
	if e.Task != nil {
		return e.Task.ID
	}
	return ""
}

// Handler receives events. Handlers run synchronously on the mutating
// goroutine; a slow handler slows the mutation.
type Handler func(Event)

// Stream is an explicit list of subscriber functions invoked in-process
// after a successful mutation. There is no hidden event loop.
type Stream struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	order    []string
}

// NewStream creates an empty event stream.
func NewStream() *Stream {
	return &Stream{
		handlers: make(map[string]Handler),
	}
}

// Subscribe registers a handler and returns its subscription ID.
func (s *Stream) Subscribe(h Handler) string {
	id := uuid.New().String()
	s.mu.Lock()
	s.handlers[id] = h
	s.order = append(s.order, id)
	s.mu.Unlock()
	return id
}

// Unsubscribe removes a handler. Unknown IDs are ignored.
func (s *Stream) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handlers[id]; !ok {
		return
	}
	delete(s.handlers, id)
	for i, have := range s.order {
		if have == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Emit delivers the event to every subscriber in subscription order.
func (s *Stream) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	s.mu.RLock()
	handlers := make([]Handler, 0, len(s.order))
	for _, id := range s.order {
		handlers = append(handlers, s.handlers[id])
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// SubscriberCount returns the number of registered handlers.
func (s *Stream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}
