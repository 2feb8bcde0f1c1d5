// Package sqlite provides a SQLite-backed connector using the pure-Go
// modernc.org/sqlite driver. Records live in a single two-column table with
// the key as primary key and the value stored as JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/evhart/preserve/pkg/connector/core"
	"github.com/evhart/preserve/pkg/connector/spec"
	"github.com/evhart/preserve/pkg/errors"
	"github.com/evhart/preserve/pkg/record"
)

// Scheme is the backend name the connector registers under.
const Scheme = "sqlite"

// ParamPath names the database file; ":memory:" opens a transient database.
const ParamPath = "path"

const schema = `
CREATE TABLE IF NOT EXISTS preserve (
	_id      TEXT PRIMARY KEY,
	_content TEXT NOT NULL
)`

// Connector stores records in the preserve table of one SQLite database.
type Connector struct {
	mu sync.Mutex
	db *sql.DB
}

// New opens (or creates) the SQLite database named by the path parameter and
// ensures the preserve table exists.
func New(params map[string]string) (core.Connector, error) {
	path := spec.FilePath(params)
	if path == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "sqlite backend requires the %q parameter", ParamPath)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeBackend, "cannot open sqlite database").
			WithDetail("path", path)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeBackend, "cannot create preserve table").
			WithDetail("path", path)
	}

	return &Connector{db: db}, nil
}

func (c *Connector) handle() (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil, errors.New(errors.ErrorTypeClosed, "sqlite store is closed")
	}
	return c.db, nil
}

// Get implements core.Connector.
func (c *Connector) Get(ctx context.Context, key string) (interface{}, error) {
	db, err := c.handle()
	if err != nil {
		return nil, err
	}

	var content string
	err = db.QueryRowContext(ctx, "SELECT _content FROM preserve WHERE _id = ?", key).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrorTypeMissingKey, "key %q not found", key).WithDetail("key", key)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeBackend, "sqlite read failed").WithDetail("key", key)
	}

	return record.Unmarshal([]byte(content))
}

// Set implements core.Connector.
func (c *Connector) Set(ctx context.Context, key string, value interface{}) error {
	db, err := c.handle()
	if err != nil {
		return err
	}

	data, err := record.Marshal(value)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		"INSERT OR REPLACE INTO preserve (_id, _content) VALUES (?, ?)", key, string(data))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeBackend, "sqlite write failed").WithDetail("key", key)
	}
	return nil
}

// Delete implements core.Connector.
func (c *Connector) Delete(ctx context.Context, key string) error {
	db, err := c.handle()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, "DELETE FROM preserve WHERE _id = ?", key)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeBackend, "sqlite delete failed").WithDetail("key", key)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeBackend, "sqlite delete failed").WithDetail("key", key)
	}
	if affected == 0 {
		return errors.Newf(errors.ErrorTypeMissingKey, "key %q not found", key).WithDetail("key", key)
	}
	return nil
}

// Contains implements core.Connector.
func (c *Connector) Contains(ctx context.Context, key string) (bool, error) {
	db, err := c.handle()
	if err != nil {
		return false, err
	}

	var n int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM preserve WHERE _id = ?", key).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeBackend, "sqlite read failed").WithDetail("key", key)
	}
	return n > 0, nil
}

// Iterate streams rows through a database cursor; the iterator must be
// closed to release it.
func (c *Connector) Iterate(ctx context.Context) (core.Iterator, error) {
	db, err := c.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT _id, _content FROM preserve")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeBackend, "sqlite scan failed")
	}
	return &iterator{rows: rows}, nil
}

// Len implements core.Connector.
func (c *Connector) Len(ctx context.Context) (int64, error) {
	db, err := c.handle()
	if err != nil {
		return 0, err
	}

	var n int64
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM preserve").Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeBackend, "sqlite count failed")
	}
	return n, nil
}

// Close releases the database handle. Idempotent.
func (c *Connector) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}

	err := c.db.Close()
	c.db = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeBackend, "cannot close sqlite database")
	}
	return nil
}

type iterator struct {
	rows    *sql.Rows
	current record.Record
	err     error
}

func (it *iterator) Next() bool {
	if it.rows == nil {
		return false
	}

	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			it.err = errors.Wrap(err, errors.ErrorTypeBackend, "sqlite scan failed")
		}
		_ = it.Close()
		return false
	}

	var key, content string
	if err := it.rows.Scan(&key, &content); err != nil {
		it.err = errors.Wrap(err, errors.ErrorTypeBackend, "sqlite scan failed")
		_ = it.Close()
		return false
	}

	value, err := record.Unmarshal([]byte(content))
	if err != nil {
		it.err = errors.Wrap(err, errors.ErrorTypeBackend, "corrupt sqlite value").
			WithDetail("key", key)
		_ = it.Close()
		return false
	}

	it.current = record.New(key, value)
	return true
}

func (it *iterator) Record() record.Record { return it.current }

func (it *iterator) Err() error { return it.err }

func (it *iterator) Close() error {
	if it.rows == nil {
		return nil
	}
	err := it.rows.Close()
	it.rows = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeBackend, "cannot release sqlite cursor")
	}
	return nil
}
