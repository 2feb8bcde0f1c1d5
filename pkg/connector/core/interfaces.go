// Package core defines the capability contract every preserve backend driver
// must satisfy. Backends are polymorphic variants behind the single Connector
// interface; the registry holds factories, not instances.
package core

import (
	"context"

	"github.com/evhart/preserve/pkg/record"
)

// Connector is an open handle to one backend instance. It owns the
// underlying resource (file handle, client session) and must release it in
// Close. A connector that has been closed rejects every further operation
// with a closed error rather than silently doing nothing.
//
// Mutating operations take effect in the backend immediately; no connector in
// this module buffers writes. Concurrent use of one open connector from
// multiple callers is undefined unless the backend documents otherwise.
type Connector interface {
	// Get returns the value stored under key, or a missing_key error.
	Get(ctx context.Context, key string) (interface{}, error)

	// Set stores value under key, replacing any existing value.
	Set(ctx context.Context, key string, value interface{}) error

	// Delete removes key, or returns a missing_key error if absent.
	Delete(ctx context.Context, key string) error

	// Contains reports whether key exists.
	Contains(ctx context.Context, key string) (bool, error)

	// Iterate returns a fresh lazy iterator over all records. The sequence
	// is finite, its order is backend-defined and need not be stable
	// across opens, and it is not restartable once exhausted.
	Iterate(ctx context.Context) (Iterator, error)

	// Len returns the number of stored records, or an unsupported error
	// for backends that cannot report it without a full scan.
	Len(ctx context.Context) (int64, error)

	// Close releases underlying resources. Idempotent.
	Close(ctx context.Context) error
}

// Iterator produces a lazy sequence of records. Callers must check Err after
// Next returns false and must Close the iterator when done with it early.
type Iterator interface {
	// Next advances to the next record, returning false when the sequence
	// is exhausted or a backend error occurred.
	Next() bool

	// Record returns the record at the current position. Only valid after
	// a Next call that returned true.
	Record() record.Record

	// Err returns the backend error that terminated iteration, if any.
	Err() error

	// Close releases resources held by the iterator. Idempotent.
	Close() error
}

// Factory constructs an open connector from a parameter mapping. Parameter
// names are backend-specific and published through the registry descriptor.
type Factory func(params map[string]string) (Connector, error)
