// Package tracker is the task service: the single orchestrator and the
// only mutation path for tasks. It enforces the lifecycle state
// machine (pending, active, completed, archived, plus the time-boxed
// reopen edge), keeps the non-archived order sequence dense after
// every mutation, normalizes tags, prevents duplicate pending/active
// content, and emits exactly one structured event per successful
// mutation.
//
// Mutations commit to the in-memory record set synchronously; the
// backing store persists them on its own debounced schedule, so no
// operation blocks on disk I/O to report success. The tracker also
// fronts the integrity engine (check, repair, background schedules,
// bounded run history), derived metrics, export snapshots, and the
// full-text index.
package tracker
