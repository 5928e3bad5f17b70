package integrity

import (
	"sync"
	"time"

	"github.com/vinayprograms/taskkit/task"
)

// DefaultHistorySize bounds the retained repair run summaries.
const DefaultHistorySize = 50

// RunSummary records one completed repair run for observability.
type RunSummary struct {
	// ScheduleID names the schedule that triggered the run, empty for
	// manual runs.
	ScheduleID string `json:"schedule_id,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`

	// Detected/Applied/Remaining mirror the run's Result.
	Detected  int `json:"detected"`
	Applied   int `json:"applied"`
	Remaining int `json:"remaining"`

	// BySeverity breaks applied repairs down per severity.
	BySeverity map[task.Severity]int `json:"by_severity,omitempty"`

	// DryRun echoes the run's mode.
	DryRun bool `json:"dry_run"`

	// Errors lists failed repair attempts, formatted.
	Errors []string `json:"errors,omitempty"`
}

// History is a bounded ring of repair run summaries, newest first.
type History struct {
	mu   sync.RWMutex
	max  int
	runs []RunSummary
}

// NewHistory creates a history retaining at most max runs.
// Non-positive max uses DefaultHistorySize.
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max}
}

// Record adds a run summary, evicting the oldest beyond the bound.
func (h *History) Record(s RunSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.runs = append([]RunSummary{s}, h.runs...)
	if len(h.runs) > h.max {
		h.runs = h.runs[:h.max]
	}
}

// List returns a copy of the retained summaries, newest first.
func (h *History) List() []RunSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]RunSummary, len(h.runs))
	copy(out, h.runs)
	return out
}

// Len returns how many summaries are retained.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.runs)
}

// Summarize converts a repair result into a run summary.
func Summarize(scheduleID string, startedAt time.Time, r *Result) RunSummary {
	s := RunSummary{
		ScheduleID: scheduleID,
		StartedAt:  startedAt,
		Duration:   r.Duration,
		Detected:   r.Detected,
		Applied:    r.Applied,
		Remaining:  r.Remaining,
		DryRun:     r.DryRun,
	}
	if len(r.BySeverity) > 0 {
		s.BySeverity = make(map[task.Severity]int, len(r.BySeverity))
		for sev, n := range r.BySeverity {
			s.BySeverity[sev] = n
		}
	}
	for _, re := range r.Errors {
		msg := re.Type.String() + ": " + re.Message
		if re.TaskID != "" {
			msg = re.Type.String() + " (" + re.TaskID + "): " + re.Message
		}
		s.Errors = append(s.Errors, msg)
	}
	return s
}
