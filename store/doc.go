// Package store provides the durable record stores behind the task
// repository. Three backends share one contract: load the full record
// set with best-effort recovery, and save the full set durably.
//
// # File store
//
// The file-backed store is the hard case. Saves are debounced (250 ms
// default) so bursts of mutations coalesce into a single disk write.
// The physical write targets a temporary file which is atomically
// renamed over the destination, so a crash mid-write never leaves a
// partial file. The previous generation survives as <path>.bak and is
// consulted on load when the primary is unreadable or fails envelope
// validation. Failed writes retry a bounded number of times with a
// fixed delay; exhausting retries makes the failure sticky so the next
// Save, Flush, or Close surfaces it.
//
// Records are wrapped in a versioned envelope:
//
//	{"version": "v1", "records": [...]}
//
// A bare-array legacy file is recognized and rewritten as a v1
// envelope on the next save. An unknown future version fails loudly,
// naming the version.
//
// # Other backends
//
// MemoryStore has identical semantics minus the I/O and is the test
// backend. SQLiteStore persists the set as one transaction per save,
// leaning on SQLite's journal for crash-safety.
package store
