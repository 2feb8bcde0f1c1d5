// Package shelf provides the local file-backed persistent mapping, stored in
// a single bbolt database file. Values are kept as JSON so a shelf file can
// be inspected and migrated with ordinary tooling.
package shelf

import (
	"context"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/evhart/preserve/pkg/connector/core"
	"github.com/evhart/preserve/pkg/connector/spec"
	"github.com/evhart/preserve/pkg/errors"
	"github.com/evhart/preserve/pkg/record"
)

// Scheme is the backend name the connector registers under.
const Scheme = "shelf"

// Recognized parameters.
const (
	ParamPath   = "path"
	ParamBucket = "bucket"

	defaultBucket = "preserve"
)

// Connector stores records in one bucket of a bbolt file. bbolt commits
// every write transaction to disk, so there is no write-behind to flush on
// Close.
type Connector struct {
	mu     sync.Mutex
	db     *bolt.DB
	bucket []byte
}

// New opens (or creates) the shelf file named by the path parameter, or by
// the host/path pair a URI resolves to.
func New(params map[string]string) (core.Connector, error) {
	path := spec.FilePath(params)
	if path == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "shelf backend requires the %q parameter", ParamPath)
	}

	bucket := params[ParamBucket]
	if bucket == "" {
		bucket = defaultBucket
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeBackend, "cannot open shelf file").
			WithDetail("path", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeBackend, "cannot create shelf bucket").
			WithDetail("bucket", bucket)
	}

	return &Connector{db: db, bucket: []byte(bucket)}, nil
}

func (c *Connector) handle() (*bolt.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil, errors.New(errors.ErrorTypeClosed, "shelf is closed")
	}
	return c.db, nil
}

// Get implements core.Connector.
func (c *Connector) Get(_ context.Context, key string) (interface{}, error) {
	db, err := c.handle()
	if err != nil {
		return nil, err
	}

	var value interface{}
	err = db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(c.bucket).Get([]byte(key))
		if data == nil {
			return errors.Newf(errors.ErrorTypeMissingKey, "key %q not found", key).WithDetail("key", key)
		}

		var err error
		value, err = record.Unmarshal(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set implements core.Connector.
func (c *Connector) Set(_ context.Context, key string, value interface{}) error {
	db, err := c.handle()
	if err != nil {
		return err
	}

	data, err := record.Marshal(value)
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(c.bucket).Put([]byte(key), data)
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeBackend, "shelf write failed").WithDetail("key", key)
	}
	return nil
}

// Delete implements core.Connector.
func (c *Connector) Delete(_ context.Context, key string) error {
	db, err := c.handle()
	if err != nil {
		return err
	}

	return db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(c.bucket)
		if bucket.Get([]byte(key)) == nil {
			return errors.Newf(errors.ErrorTypeMissingKey, "key %q not found", key).WithDetail("key", key)
		}
		if err := bucket.Delete([]byte(key)); err != nil {
			return errors.Wrap(err, errors.ErrorTypeBackend, "shelf delete failed").WithDetail("key", key)
		}
		return nil
	})
}

// Contains implements core.Connector.
func (c *Connector) Contains(_ context.Context, key string) (bool, error) {
	db, err := c.handle()
	if err != nil {
		return false, err
	}

	var found bool
	err = db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(c.bucket).Get([]byte(key)) != nil
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeBackend, "shelf read failed")
	}
	return found, nil
}

// Iterate returns a cursor over the bucket inside a long-lived read
// transaction, so iteration streams from disk without loading the store
// into memory. The iterator must be closed to release the transaction.
func (c *Connector) Iterate(_ context.Context) (core.Iterator, error) {
	db, err := c.handle()
	if err != nil {
		return nil, err
	}

	tx, err := db.Begin(false)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeBackend, "cannot begin shelf read transaction")
	}

	return &iterator{tx: tx, cursor: tx.Bucket(c.bucket).Cursor()}, nil
}

// Len reports the bucket's key count from bbolt's bucket statistics.
func (c *Connector) Len(_ context.Context) (int64, error) {
	db, err := c.handle()
	if err != nil {
		return 0, err
	}

	var n int64
	err = db.View(func(tx *bolt.Tx) error {
		n = int64(tx.Bucket(c.bucket).Stats().KeyN)
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeBackend, "shelf stats failed")
	}
	return n, nil
}

// Close releases the database file. Idempotent.
func (c *Connector) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}

	err := c.db.Close()
	c.db = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeBackend, "cannot close shelf file")
	}
	return nil
}

type iterator struct {
	tx      *bolt.Tx
	cursor  *bolt.Cursor
	current record.Record
	started bool
	done    bool
	err     error
}

func (it *iterator) Next() bool {
	if it.done {
		return false
	}

	var key, data []byte
	if !it.started {
		it.started = true
		key, data = it.cursor.First()
	} else {
		key, data = it.cursor.Next()
	}

	if key == nil {
		it.done = true
		_ = it.Close()
		return false
	}

	value, err := record.Unmarshal(data)
	if err != nil {
		it.err = errors.Wrap(err, errors.ErrorTypeBackend, "corrupt shelf value").
			WithDetail("key", string(key))
		it.done = true
		_ = it.Close()
		return false
	}

	it.current = record.New(string(key), value)
	return true
}

func (it *iterator) Record() record.Record { return it.current }

func (it *iterator) Err() error { return it.err }

func (it *iterator) Close() error {
	if it.tx == nil {
		return nil
	}
	err := it.tx.Rollback()
	it.tx = nil
	it.done = true
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeBackend, "cannot release shelf read transaction")
	}
	return nil
}
