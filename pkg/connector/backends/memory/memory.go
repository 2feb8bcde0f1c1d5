// Package memory provides the in-memory reference backend. It keeps every
// record in a process-local map and is the backend the rest of the test suite
// exercises facade and pipeline semantics against.
package memory

import (
	"context"
	"sync"

	"github.com/evhart/preserve/pkg/connector/core"
	"github.com/evhart/preserve/pkg/errors"
	"github.com/evhart/preserve/pkg/record"
)

// Scheme is the backend name the connector registers under.
const Scheme = "memory"

// Connector is a map-backed store. It is mutex-guarded because tests drive
// it from multiple goroutines; other backends make no such promise.
type Connector struct {
	mu   sync.RWMutex
	data map[string]interface{}
}

// New creates an open in-memory connector. No parameters are recognized;
// unknown ones are ignored so that generic URI components (host, path) do
// not fail the factory.
func New(_ map[string]string) (core.Connector, error) {
	return &Connector{data: make(map[string]interface{})}, nil
}

// Get implements core.Connector.
func (c *Connector) Get(_ context.Context, key string) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.data == nil {
		return nil, errClosed()
	}

	value, ok := c.data[key]
	if !ok {
		return nil, errMissing(key)
	}
	return value, nil
}

// Set implements core.Connector.
func (c *Connector) Set(_ context.Context, key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data == nil {
		return errClosed()
	}

	c.data[key] = value
	return nil
}

// Delete implements core.Connector.
func (c *Connector) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data == nil {
		return errClosed()
	}

	if _, ok := c.data[key]; !ok {
		return errMissing(key)
	}
	delete(c.data, key)
	return nil
}

// Contains implements core.Connector.
func (c *Connector) Contains(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.data == nil {
		return false, errClosed()
	}

	_, ok := c.data[key]
	return ok, nil
}

// Iterate returns an iterator over a snapshot of the store taken at call
// time, so mutations during iteration do not disturb the sequence.
func (c *Connector) Iterate(_ context.Context) (core.Iterator, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.data == nil {
		return nil, errClosed()
	}

	records := make([]record.Record, 0, len(c.data))
	for key, value := range c.data {
		records = append(records, record.New(key, value))
	}
	return core.NewSliceIterator(records), nil
}

// Len implements core.Connector.
func (c *Connector) Len(_ context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.data == nil {
		return 0, errClosed()
	}
	return int64(len(c.data)), nil
}

// Close releases the map. Idempotent.
func (c *Connector) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
	return nil
}

func errClosed() error {
	return errors.New(errors.ErrorTypeClosed, "memory store is closed")
}

func errMissing(key string) error {
	return errors.Newf(errors.ErrorTypeMissingKey, "key %q not found", key).WithDetail("key", key)
}
