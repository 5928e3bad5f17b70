// Package events provides the synchronous in-process event stream.
//
// Every successful mutation emits exactly one structured event, at the
// point the change commits to the in-memory record set and before the
// debounced persistence write is scheduled. Eight kinds exist: task
// added, updated, started, completed, reopened, a batch reorder, a
// batch archive, and an integrity-repair event.
//
// Delivery is a plain subscriber list invoked on the mutating
// goroutine. Cross-process push is out of scope: the engine is a
// single-process, single-writer core, and event consumers live in the
// same process.
package events
