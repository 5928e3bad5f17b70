package tracker

import (
	"time"

	"github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/events"
	"github.com/vinayprograms/taskkit/integrity"
	"github.com/vinayprograms/taskkit/task"
)

// CheckIntegrity runs the full anomaly scan without mutating anything.
func (t *Tracker) CheckIntegrity() []task.Anomaly {
	return t.engine.Check()
}

// RepairIntegrity runs a check-then-repair pass, records it in the run
// history, and emits the repair event when repairs were applied and
// events are not suppressed. Dry runs never mutate and never emit.
func (t *Tracker) RepairIntegrity(opts integrity.RepairOptions) (*integrity.Result, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	return t.repair("", opts)
}

// repair is the shared manual/scheduled repair path. scheduleID tags
// the history entry, empty for manual runs.
func (t *Tracker) repair(scheduleID string, opts integrity.RepairOptions) (*integrity.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	started := t.clock()
	result, err := t.engine.Repair(opts)
	if err != nil {
		return nil, err
	}
	t.history.Record(integrity.Summarize(scheduleID, started, result))

	if result.Applied > 0 && !result.DryRun {
		// Repairs rewrite tasks without per-task events; refresh the
		// derived index wholesale.
		if err := t.index.Rebuild(t.repo.All()); err != nil {
			t.log.Warn("index rebuild after repair failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		if !opts.SuppressEvents {
			t.emit(events.Event{
				Kind: events.KindRepairApplied,
				Details: map[string]any{
					"detected":  result.Detected,
					"applied":   result.Applied,
					"remaining": result.Remaining,
				},
			})
		}
	}
	return result, nil
}

// ScheduleIntegrityRepair starts a background repair schedule and
// returns its cancellation handle. The first run happens one interval
// after scheduling.
func (t *Tracker) ScheduleIntegrityRepair(interval time.Duration, opts integrity.RepairOptions) (string, error) {
	if err := t.checkOpen(); err != nil {
		return "", err
	}
	if interval <= 0 {
		return "", errors.Validation("repair interval must be positive")
	}

	var s *integrity.Scheduler
	s = integrity.NewScheduler(interval, func() {
		if _, err := t.repair(s.ID(), opts); err != nil {
			t.log.Warn("scheduled repair failed", map[string]interface{}{
				"schedule": s.ID(),
				"error":    err.Error(),
			})
		}
	}, t.log)

	t.schedMu.Lock()
	t.schedulers[s.ID()] = s
	t.schedMu.Unlock()

	s.Start()
	return s.ID(), nil
}

// CancelScheduledRepair stops a repair schedule. Takes effect before
// the next tick; an in-flight run completes first.
func (t *Tracker) CancelScheduledRepair(id string) error {
	t.schedMu.Lock()
	s, ok := t.schedulers[id]
	if ok {
		delete(t.schedulers, id)
	}
	t.schedMu.Unlock()

	if !ok {
		return errors.NotFound("no repair schedule with ID " + id)
	}
	s.Stop()
	return nil
}

// RepairHistory returns the retained repair run summaries, newest
// first.
func (t *Tracker) RepairHistory() []integrity.RunSummary {
	return t.history.List()
}
