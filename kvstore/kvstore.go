// Package kvstore provides the durable key-value backends that ballotbox
// persists records into. A Store is a flat mapping from a record identifier
// to an opaque serialized value, with ascending-order iteration.
//
// Two backends are available: a Bolt-backed store (Open) and a transient
// in-memory store (OpenMemory) intended for tests.
package kvstore

import "errors"

// ErrNotFound is returned by Store.Get when no value exists for the id.
var ErrNotFound = errors.New("kvstore: not found")

// ErrClosed is returned by any operation on a closed store.
var ErrClosed = errors.New("kvstore: store closed")

// Store is a durable mapping from record ids to serialized values.
//
// Delete is idempotent: deleting an id that is not present is a no-op.
// Clear relies on this, so any new backend must preserve it.
type Store interface {
	// Put durably upserts the value for id, overwriting any prior value.
	Put(id, value []byte) error

	// Get returns the value stored for id, or ErrNotFound.
	// The returned slice is owned by the caller.
	Get(id []byte) ([]byte, error)

	// Delete removes the entry for id. Missing ids are a no-op.
	Delete(id []byte) error

	// ForEach invokes fn for every entry in ascending id order. The id and
	// value slices are only valid for the duration of the callback. A
	// non-nil error from fn stops the iteration and is returned as is.
	// Each call iterates from the first key again.
	ForEach(fn func(id, value []byte) error) error

	// Clear removes every entry.
	Clear() error

	// Len returns the number of entries (best effort).
	Len() int

	// Close flushes and releases the backing storage. The store cannot be
	// used afterwards.
	Close() error
}

// Options adjusts backend behavior.
type Options struct {
	// NoSync disables fsync on the Bolt backend. Only safe for tests.
	NoSync bool
}
