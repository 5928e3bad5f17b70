package integrity

import (
	"time"

	"github.com/vinayprograms/taskkit/logging"
	"github.com/vinayprograms/taskkit/repo"
	"github.com/vinayprograms/taskkit/task"
)

// RepairOptions filters which detected anomalies a repair run touches.
// The zero value repairs everything repairable.
type RepairOptions struct {
	// DryRun reports what would be repaired without mutating anything.
	DryRun bool

	// SeverityFloor skips anomalies below this severity. Empty means
	// no floor.
	SeverityFloor task.Severity

	// Types restricts repair to the listed anomaly types. Empty means
	// all types.
	Types []task.AnomalyType

	// MaxRepairs caps how many anomalies one call repairs. Zero means
	// unlimited.
	MaxRepairs int

	// SuppressEvents stops the caller from emitting the repair event.
	// Detection and repair themselves never emit; this travels with
	// the options so scheduled and manual runs behave alike.
	SuppressEvents bool
}

// allowsType reports whether the options permit repairing the type.
func (o RepairOptions) allowsType(at task.AnomalyType) bool {
	if len(o.Types) == 0 {
		return true
	}
	for _, want := range o.Types {
		if want == at {
			return true
		}
	}
	return false
}

// allowsSeverity reports whether the options permit the severity.
func (o RepairOptions) allowsSeverity(s task.Severity) bool {
	if o.SeverityFloor == "" {
		return true
	}
	return s.AtLeast(o.SeverityFloor)
}

// RepairError records one failed repair attempt.
type RepairError struct {
	Type    task.AnomalyType `json:"type"`
	TaskID  string           `json:"task_id,omitempty"`
	Message string           `json:"message"`
}

// Result summarizes one check-then-repair pass.
type Result struct {
	// Detected is how many anomalies the scan found.
	Detected int `json:"detected"`

	// Applied is how many repairs were applied (or, under DryRun,
	// would have been).
	Applied int `json:"applied"`

	// Remaining is how many anomalies persist after the pass:
	// filtered out, capped out, unrepairable, or failed.
	Remaining int `json:"remaining"`

	// BySeverity breaks Applied down per severity.
	BySeverity map[task.Severity]int `json:"by_severity"`

	// Errors lists failed repair attempts.
	Errors []RepairError `json:"errors,omitempty"`

	// DryRun echoes the option the pass ran under.
	DryRun bool `json:"dry_run"`

	// Duration is how long the pass took.
	Duration time.Duration `json:"duration"`
}

// Engine detects and repairs structural anomalies through the
// repository. Detection is strictly read-only; the mutation phase of a
// repair goes through the same repository path as any other mutation.
type Engine struct {
	repo  *repo.Repository
	clock func() time.Time
	log   *logging.Logger
}

// NewEngine creates an integrity engine over the repository.
func NewEngine(r *repo.Repository, clock func() time.Time, log *logging.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logging.New()
	}
	return &Engine{
		repo:  r,
		clock: clock,
		log:   log.WithComponent("integrity"),
	}
}

// Check runs the full detector battery without mutating anything.
func (e *Engine) Check() []task.Anomaly {
	return e.repo.DetectAnomalies(e.clock())
}

// Repair replays detected anomalies and applies the defined remediation
// per type, subject to the option filters. Idempotent: an immediate
// second run detects no further anomalies of the repaired classes.
func (e *Engine) Repair(opts RepairOptions) (*Result, error) {
	start := e.clock()
	now := start

	anomalies := e.repo.DetectAnomalies(now)
	result := &Result{
		Detected:   len(anomalies),
		BySeverity: make(map[task.Severity]int),
		DryRun:     opts.DryRun,
	}

	// One renumbering closes every order anomaly in the set.
	renumbered := false

	for _, a := range anomalies {
		if opts.MaxRepairs > 0 && result.Applied >= opts.MaxRepairs {
			break
		}
		if !opts.allowsType(a.Type) || !opts.allowsSeverity(a.Severity) {
			continue
		}
		remedy, ok := remediations[a.Type]
		if !ok {
			continue
		}

		if opts.DryRun {
			result.Applied++
			result.BySeverity[a.Severity]++
			continue
		}

		if a.Type == task.AnomalyOrderGap && renumbered {
			result.Applied++
			result.BySeverity[a.Severity]++
			continue
		}

		if err := remedy(e, a, now); err != nil {
			result.Errors = append(result.Errors, RepairError{
				Type:    a.Type,
				TaskID:  a.TaskID,
				Message: err.Error(),
			})
			e.log.Warn("repair failed", map[string]interface{}{
				"type":  a.Type.String(),
				"task":  a.TaskID,
				"error": err.Error(),
			})
			continue
		}
		if a.Type == task.AnomalyOrderGap {
			renumbered = true
		}
		result.Applied++
		result.BySeverity[a.Severity]++
	}

	if opts.DryRun {
		result.Remaining = result.Detected - result.Applied
	} else {
		result.Remaining = len(e.repo.DetectAnomalies(now))
	}
	result.Duration = e.clock().Sub(start)

	if result.Applied > 0 && !opts.DryRun {
		e.log.Info("repair pass complete", map[string]interface{}{
			"detected":  result.Detected,
			"applied":   result.Applied,
			"remaining": result.Remaining,
		})
	}
	return result, nil
}
