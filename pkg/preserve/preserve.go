// Package preserve exposes the dictionary-style access layer callers use day
// to day. A Store wraps exactly one open connector, owns it, and translates
// every backend failure into the structured error taxonomy so driver-native
// error types never leak upward.
package preserve

import (
	"context"

	"go.uber.org/zap"

	"github.com/evhart/preserve/pkg/connector/core"
	"github.com/evhart/preserve/pkg/connector/registry"
	"github.com/evhart/preserve/pkg/connector/spec"
	"github.com/evhart/preserve/pkg/errors"
	"github.com/evhart/preserve/pkg/logger"
	"github.com/evhart/preserve/pkg/record"
)

// Store wraps one connector with mapping semantics. The Store holds
// exclusive ownership of the connector and releases it in Close.
type Store struct {
	conn   core.Connector
	logger *zap.Logger
}

// NewStore wraps an already-open connector. Ownership transfers to the
// Store; the caller must not close the connector directly afterwards.
func NewStore(conn core.Connector) *Store {
	return &Store{
		conn:   conn,
		logger: logger.Get().With(zap.String("component", "store")),
	}
}

// Open constructs a Store by backend name and parameter mapping, bypassing
// URI parsing entirely.
func Open(name string, params map[string]string) (*Store, error) {
	conn, err := registry.Open(name, params)
	if err != nil {
		return nil, err
	}
	return NewStore(conn), nil
}

// FromURI constructs a Store from a connection string.
func FromURI(uri string) (*Store, error) {
	s, err := spec.Parse(uri)
	if err != nil {
		return nil, err
	}

	conn, err := s.Open(registry.GetRegistry())
	if err != nil {
		return nil, err
	}
	return NewStore(conn), nil
}

// Backends returns the names of all registered backends.
func Backends() []string {
	return registry.List()
}

// With opens a Store from a connection string, runs fn against it, and
// closes it on every exit path.
func With(ctx context.Context, uri string, fn func(*Store) error) error {
	store, err := FromURI(uri)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(ctx); cerr != nil {
			store.logger.Warn("failed to close store", zap.Error(cerr))
		}
	}()

	return fn(store)
}

// Peek opens the store behind a connection string and returns its first n
// records, in backend iteration order. Used for preview/header display.
func Peek(ctx context.Context, uri string, n int) ([]record.Record, error) {
	var records []record.Record
	err := With(ctx, uri, func(store *Store) error {
		it, err := store.Iterate(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = it.Close() }()

		for len(records) < n && it.Next() {
			records = append(records, it.Record())
		}
		return translate(it.Err())
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns the value stored under key. A read of an absent key fails
// with a missing_key error.
func (s *Store) Get(ctx context.Context, key string) (interface{}, error) {
	value, err := s.conn.Get(ctx, key)
	if err != nil {
		return nil, translate(err)
	}
	return value, nil
}

// Set stores a JSON-like value under key, replacing any existing value.
// Values that are not JSON-like fail with an unsupported_value error before
// the backend is touched.
func (s *Store) Set(ctx context.Context, key string, value interface{}) error {
	if err := record.Validate(value); err != nil {
		return err
	}
	return translate(s.conn.Set(ctx, key, value))
}

// Delete removes key. Deleting an absent key fails with a missing_key error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return translate(s.conn.Delete(ctx, key))
}

// Contains reports whether key exists.
func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	ok, err := s.conn.Contains(ctx, key)
	if err != nil {
		return false, translate(err)
	}
	return ok, nil
}

// Len returns the number of stored records. Backends that cannot report it
// cheaply fail with an unsupported error.
func (s *Store) Len(ctx context.Context) (int64, error) {
	n, err := s.conn.Len(ctx)
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// Iterate returns a fresh lazy iterator over all records.
func (s *Store) Iterate(ctx context.Context) (core.Iterator, error) {
	it, err := s.conn.Iterate(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return it, nil
}

// Keys collects every key in backend iteration order. Unlike Iterate it
// materializes the key set, so prefer Iterate for large stores.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	it, err := s.Iterate(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	var keys []string
	for it.Next() {
		keys = append(keys, it.Record().Key)
	}
	if err := it.Err(); err != nil {
		return nil, translate(err)
	}
	return keys, nil
}

// Connector exposes the wrapped connector for bulk operations such as the
// migration pipeline. Ownership stays with the Store.
func (s *Store) Connector() core.Connector {
	return s.conn
}

// Close releases the underlying connector. Idempotent.
func (s *Store) Close(ctx context.Context) error {
	return translate(s.conn.Close(ctx))
}

// translate guarantees the facade's error taxonomy: structured errors pass
// through, anything else is wrapped as a backend failure.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsError(err); ok {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeBackend, "backend operation failed")
}
