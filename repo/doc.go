// Package repo provides the storage-agnostic repository between the
// tracker and the record stores: CRUD, state/tag queries, the order
// sequence, duplicate lookup, and the anomaly detector battery.
//
// The repository is the only holder of the in-memory record set. All
// reads return defensive copies; all mutations replace the stored copy
// and save the full set through the backing store, so the invariant
// checks here apply identically over every storage backend.
package repo
