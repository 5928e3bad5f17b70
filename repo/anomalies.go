package repo

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/vinayprograms/taskkit/task"
)

// DetectAnomalies evaluates the full detector battery against the
// current record set. Strictly read-only: repeated calls on unchanged
// data produce identical results.
func (r *Repository) DetectAnomalies(now time.Time) []task.Anomaly {
	r.mu.RLock()
	records := r.snapshotLocked()
	r.mu.RUnlock()

	var anomalies []task.Anomaly
	anomalies = append(anomalies, detectDuplicateContent(records)...)
	anomalies = append(anomalies, detectOrderGaps(records)...)
	anomalies = append(anomalies, detectInvalidStates(records)...)
	anomalies = append(anomalies, detectMissingFields(records)...)
	anomalies = append(anomalies, detectTimestampProblems(records, now)...)
	anomalies = append(anomalies, detectMalformedMetadata(records)...)
	anomalies = append(anomalies, detectOrphanedReferences(records)...)
	anomalies = append(anomalies, detectInconsistentMetadata(records)...)
	return anomalies
}

// detectDuplicateContent flags pending/active tasks sharing normalized
// content. The first occurrence is the original; later ones are flagged.
func detectDuplicateContent(records []*task.Task) []task.Anomaly {
	seen := make(map[string]string) // normalized content -> first task ID
	var anomalies []task.Anomaly

	for _, t := range records {
		if t.State != task.StatePending && t.State != task.StateActive {
			continue
		}
		norm := task.NormalizeContent(t.Content)
		if norm == "" {
			continue
		}
		if firstID, ok := seen[norm]; ok {
			anomalies = append(anomalies, task.Anomaly{
				Type:        task.AnomalyDuplicateContent,
				TaskID:      t.ID,
				Description: fmt.Sprintf("content duplicates active task %s: %q", firstID, t.Content),
				Severity:    task.SeverityHigh,
				Remediation: "resolve manually: complete, rewrite, or delete one of the duplicates",
			})
			continue
		}
		seen[norm] = t.ID
	}
	return anomalies
}

// detectOrderGaps flags gaps and duplicates in the non-archived order
// sequence.
func detectOrderGaps(records []*task.Task) []task.Anomaly {
	var orders []int
	for _, t := range records {
		if t.State != task.StateArchived {
			orders = append(orders, t.Order)
		}
	}
	if len(orders) == 0 {
		return nil
	}
	sort.Ints(orders)

	var anomalies []task.Anomaly
	for i, order := range orders {
		want := task.OrderBase + i
		if order == want {
			continue
		}
		var desc string
		if i > 0 && order == orders[i-1] {
			desc = fmt.Sprintf("duplicate order value %d", order)
		} else {
			desc = fmt.Sprintf("order value %d where %d expected", order, want)
		}
		anomalies = append(anomalies, task.Anomaly{
			Type:        task.AnomalyOrderGap,
			Description: desc,
			Severity:    task.SeverityMedium,
			Remediation: "renumber non-archived tasks to a dense sequence",
		})
	}
	return anomalies
}

func detectInvalidStates(records []*task.Task) []task.Anomaly {
	var anomalies []task.Anomaly
	for _, t := range records {
		if t.State.Valid() {
			continue
		}
		anomalies = append(anomalies, task.Anomaly{
			Type:        task.AnomalyInvalidState,
			TaskID:      t.ID,
			Description: fmt.Sprintf("state %q is not in the legal variant set", t.State),
			Severity:    task.SeverityHigh,
			Remediation: "coerce to the nearest legal predecessor state",
		})
	}
	return anomalies
}

func detectMissingFields(records []*task.Task) []task.Anomaly {
	var anomalies []task.Anomaly
	for _, t := range records {
		if t.ID == "" {
			anomalies = append(anomalies, task.Anomaly{
				Type:        task.AnomalyMissingField,
				Description: fmt.Sprintf("task with content %q has no ID", t.Content),
				Severity:    task.SeverityHigh,
			})
		}
		if task.NormalizeContent(t.Content) == "" {
			anomalies = append(anomalies, task.Anomaly{
				Type:        task.AnomalyMissingField,
				TaskID:      t.ID,
				Description: "task has empty content",
				Severity:    task.SeverityHigh,
			})
		}
		if t.CreatedAt.IsZero() {
			anomalies = append(anomalies, task.Anomaly{
				Type:        task.AnomalyMissingField,
				TaskID:      t.ID,
				Description: "task has no creation timestamp",
				Severity:    task.SeverityMedium,
			})
		}
	}
	return anomalies
}

func detectTimestampProblems(records []*task.Task, now time.Time) []task.Anomaly {
	var anomalies []task.Anomaly
	futureStamp := func(t *task.Task, name string, ts time.Time) {
		anomalies = append(anomalies, task.Anomaly{
			Type:        task.AnomalyFutureTimestamp,
			TaskID:      t.ID,
			Description: fmt.Sprintf("%s is %s in the future", name, ts.Sub(now)),
			Severity:    task.SeverityMedium,
			Remediation: "clamp to the current time",
		})
	}
	for _, t := range records {
		if !t.CreatedAt.IsZero() && t.CreatedAt.After(now) {
			futureStamp(t, "created_at", t.CreatedAt)
		}
		if !t.UpdatedAt.IsZero() && t.UpdatedAt.After(now) {
			futureStamp(t, "updated_at", t.UpdatedAt)
		}
		if t.CompletedAt != nil {
			if t.CompletedAt.After(now) {
				anomalies = append(anomalies, task.Anomaly{
					Type:        task.AnomalyFutureTimestamp,
					TaskID:      t.ID,
					Description: fmt.Sprintf("completed_at is %s in the future", t.CompletedAt.Sub(now)),
					Severity:    task.SeverityMedium,
					Remediation: "clamp to the current time",
				})
			}
			if !t.CreatedAt.IsZero() && t.CompletedAt.Before(t.CreatedAt) {
				anomalies = append(anomalies, task.Anomaly{
					Type:        task.AnomalyNegativeDuration,
					TaskID:      t.ID,
					Description: "completed before created",
					Severity:    task.SeverityMedium,
					Remediation: "clamp completion time to the creation time",
				})
			}
		}
		if !t.CreatedAt.IsZero() && !t.UpdatedAt.IsZero() && t.UpdatedAt.Before(t.CreatedAt) {
			anomalies = append(anomalies, task.Anomaly{
				Type:        task.AnomalyTimestampDrift,
				TaskID:      t.ID,
				Description: "updated before created",
				Severity:    task.SeverityLow,
				Remediation: "align update time with the creation time",
			})
		}
	}
	return anomalies
}

// detectMalformedMetadata flags metadata bags that cannot survive the
// serialization boundary.
func detectMalformedMetadata(records []*task.Task) []task.Anomaly {
	var anomalies []task.Anomaly
	for _, t := range records {
		if len(t.Metadata) == 0 {
			continue
		}
		keys := make([]string, 0, len(t.Metadata))
		for key := range t.Metadata {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, err := json.Marshal(t.Metadata[key]); err != nil {
				anomalies = append(anomalies, task.Anomaly{
					Type:        task.AnomalyMalformedData,
					TaskID:      t.ID,
					Description: fmt.Sprintf("metadata key %q holds an unserializable value", key),
					Severity:    task.SeverityLow,
					Remediation: "drop the unserializable entry",
				})
			}
		}
	}
	return anomalies
}

// ReferenceKeys are the metadata keys whose string values are expected
// to name other tasks. The repair path drops entries under these keys
// when they dangle.
var ReferenceKeys = []string{"parent", "blocked_by"}

func detectOrphanedReferences(records []*task.Task) []task.Anomaly {
	known := make(map[string]bool, len(records))
	for _, t := range records {
		known[t.ID] = true
	}

	var anomalies []task.Anomaly
	for _, t := range records {
		for _, key := range ReferenceKeys {
			ref, ok := t.Metadata[key].(string)
			if !ok || ref == "" {
				continue
			}
			if !known[ref] {
				anomalies = append(anomalies, task.Anomaly{
					Type:        task.AnomalyOrphanedReference,
					TaskID:      t.ID,
					Description: fmt.Sprintf("metadata %q references unknown task %s", key, ref),
					Severity:    task.SeverityMedium,
					Remediation: "remove the dangling reference",
				})
			}
		}
	}
	return anomalies
}

// detectInconsistentMetadata flags state/timestamp contradictions.
func detectInconsistentMetadata(records []*task.Task) []task.Anomaly {
	var anomalies []task.Anomaly
	for _, t := range records {
		switch t.State {
		case task.StateCompleted, task.StateArchived:
			if t.CompletedAt == nil {
				anomalies = append(anomalies, task.Anomaly{
					Type:        task.AnomalyInconsistentMetadata,
					TaskID:      t.ID,
					Description: fmt.Sprintf("%s task has no completion timestamp", t.State),
					Severity:    task.SeverityMedium,
					Remediation: "backfill completion time from the last update",
				})
			}
		case task.StatePending, task.StateActive:
			if t.CompletedAt != nil {
				anomalies = append(anomalies, task.Anomaly{
					Type:        task.AnomalyInconsistentMetadata,
					TaskID:      t.ID,
					Description: fmt.Sprintf("%s task carries a completion timestamp", t.State),
					Severity:    task.SeverityMedium,
					Remediation: "clear the completion timestamp",
				})
			}
		}
	}
	return anomalies
}
