// Package integrity detects and repairs structural anomalies in the
// stored task set.
//
// Check is strictly non-mutating: it evaluates a fixed battery of
// detectors (duplicate active content, order gaps and duplicates,
// invalid states, missing fields, future timestamps, negative
// durations, timestamp drift, malformed metadata, dangling references,
// state/timestamp contradictions) and yields Anomaly values with
// severities.
//
// Repair replays the detected anomalies and applies a remediation per
// type where one is defined, filtered by dry-run, a severity floor, a
// type allowlist, and a per-call cap. Repair is idempotent: re-running
// immediately after a successful pass finds no further anomalies of
// the repaired classes. Duplicate content and missing fields have no
// automatic remediation and are reported as remaining.
//
// The Scheduler runs the same check-then-repair path on a fixed
// interval, and History retains a bounded ring of run summaries for
// observability.
package integrity
