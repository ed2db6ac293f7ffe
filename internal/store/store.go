// Package store defines the license record store: a key-value document
// store with atomic read, create-if-absent, and compare-and-update
// semantics. The activation engine never talks to it directly; the service
// layer drives the read-decide-write cycle.
package store

import (
	"context"
	"errors"

	"keyserve/internal/license"
)

var (
	// ErrNotFound: no record exists for the key.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists: Create hit an existing key.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrConflict: the conditional update lost to a concurrent writer.
	// Retryable with a fresh read.
	ErrConflict = errors.New("revision conflict")
	// ErrUnavailable: the backing store timed out or failed. Retryable,
	// distinct from business-rule rejections.
	ErrUnavailable = errors.New("store unavailable")
)

// Store is the record store contract. Implementations must honor the
// caller's context deadline on every call.
type Store interface {
	// Get returns a copy of the record for key, or ErrNotFound.
	Get(ctx context.Context, key string) (*license.Record, error)

	// Create inserts a new record, failing with ErrAlreadyExists when the
	// key is taken. The stored revision starts at 1.
	Create(ctx context.Context, rec *license.Record) error

	// UpdateIf replaces the record only if its stored revision still equals
	// expectedRevision, bumping the revision on success. Returns ErrConflict
	// when a concurrent writer got there first, ErrNotFound when the record
	// vanished.
	UpdateIf(ctx context.Context, rec *license.Record, expectedRevision int64) error

	// BumpCheckCount increments the diagnostic verification counter.
	// Best-effort: not revision-guarded, and callers ignore failures.
	BumpCheckCount(ctx context.Context, key string) error

	// List returns all records, for operator tooling.
	List(ctx context.Context) ([]license.Record, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close(ctx context.Context) error
}
