// Package search maintains a bleve full-text index over task content
// and tags. The index is a derived view: the repository stays the
// source of truth, the index answers free-text queries with task IDs.
// It is fed incrementally from the event stream and can be rebuilt
// wholesale from a record-set snapshot, which also makes a memory-only
// index (the default) cheap to reconstruct at startup.
package search
