package task

// AnomalyType classifies a structural inconsistency found in the
// stored task set.
type AnomalyType string

const (
	// AnomalyDuplicateContent indicates two pending/active tasks share
	// identical normalized content.
	AnomalyDuplicateContent AnomalyType = "duplicate_active_content"

	// AnomalyOrderGap indicates the non-archived order sequence has a
	// gap or a duplicate value.
	AnomalyOrderGap AnomalyType = "order_gap"

	// AnomalyInvalidState indicates a task carries a state outside the
	// legal variant set.
	AnomalyInvalidState AnomalyType = "invalid_state"

	// AnomalyMissingField indicates a required field is empty.
	AnomalyMissingField AnomalyType = "missing_field"

	// AnomalyTimestampDrift indicates timestamps are mutually
	// inconsistent, such as an update time before the creation time.
	AnomalyTimestampDrift AnomalyType = "timestamp_drift"

	// AnomalyFutureTimestamp indicates a timestamp lies in the future.
	AnomalyFutureTimestamp AnomalyType = "future_timestamp"

	// AnomalyNegativeDuration indicates a completion time before the
	// creation time.
	AnomalyNegativeDuration AnomalyType = "negative_duration"

	// AnomalyMalformedData indicates auxiliary metadata that cannot be
	// serialized.
	AnomalyMalformedData AnomalyType = "malformed_data"

	// AnomalyOrphanedReference indicates metadata referencing a task
	// that does not exist.
	AnomalyOrphanedReference AnomalyType = "orphaned_reference"

	// AnomalyInconsistentMetadata indicates state and timestamps that
	// contradict each other, such as a completed task without a
	// completion time.
	AnomalyInconsistentMetadata AnomalyType = "inconsistent_metadata"
)

// String returns the string representation of the anomaly type.
func (a AnomalyType) String() string {
	return string(a)
}

// Severity grades how urgently an anomaly needs attention.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// severityRank maps severities to numeric rank for floor filtering.
var severityRank = map[Severity]int{
	SeverityLow:    0,
	SeverityMedium: 1,
	SeverityHigh:   2,
}

// Rank returns the numeric rank of the severity for comparison.
// Unknown severities rank below low.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether the severity meets the given floor.
func (s Severity) AtLeast(floor Severity) bool {
	return s.Rank() >= floor.Rank()
}

// Anomaly is a diagnostic value produced by integrity scanning.
// Anomalies are ephemeral: computed on demand, never persisted.
type Anomaly struct {
	// Type is the anomaly classification.
	Type AnomalyType `json:"type"`

	// TaskID references the offending task, if the anomaly concerns a
	// single task. Empty for set-level anomalies such as order gaps.
	TaskID string `json:"task_id,omitempty"`

	// Description is a human-readable account of the inconsistency.
	Description string `json:"description"`

	// Severity grades the anomaly.
	Severity Severity `json:"severity"`

	// Remediation describes the suggested fix, if one is defined.
	Remediation string `json:"remediation,omitempty"`
}
