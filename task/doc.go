// Package task defines the core task entity and its lifecycle.
//
// A Task moves through a strict state machine:
//
//	pending → active → completed → archived
//
// plus a time-boxed reverse edge completed → pending ("reopen"), valid
// only within the reopen window measured from the completion timestamp.
// All other transitions are rejected. The window itself is enforced by
// the tracker package; this package only encodes the graph.
//
// # Ordering
//
// Every non-archived task carries an integer Order. Orders form a
// dense, duplicate-free sequence starting at OrderBase; archiving a
// task removes it from the ordering domain and the remaining orders
// re-densify.
//
// # Anomalies
//
// The Anomaly type is the diagnostic vocabulary of the integrity
// subsystem: a classification, an optional task reference, a severity,
// and an optional suggested remediation. Anomalies are computed on
// demand and never persisted.
package task
