// Package mongodb provides the document-database connector. Each record is
// one document in a collection, with the key stored as the document _id.
//
// Mapping values are stored as the document body with _id added. Scalar and
// sequence values cannot be document bodies, so they are wrapped under the
// reserved _value field and unwrapped on read.
package mongodb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/evhart/preserve/pkg/connector/core"
	"github.com/evhart/preserve/pkg/errors"
	"github.com/evhart/preserve/pkg/record"
)

// Scheme is the backend name the connector registers under.
const Scheme = "mongodb"

// Recognized parameters.
const (
	ParamHost       = "host"
	ParamPort       = "port"
	ParamPath       = "path"
	ParamUser       = "user"
	ParamPassword   = "password"
	ParamDatabase   = "database"
	ParamCollection = "collection"
	ParamTimeout    = "timeout"

	defaultHost     = "127.0.0.1"
	defaultPort     = 27017
	defaultDatabase = "db"
	defaultTimeout  = 10 * time.Second
)

// valueField wraps non-mapping values inside a document body.
const valueField = "_value"

// Connector is an open handle to one MongoDB collection.
type Connector struct {
	client     *mongo.Client
	collection *mongo.Collection
	closed     bool
}

// New connects to the MongoDB server described by the parameters. The
// database name comes from the database parameter or, when resolved from a
// URI, from the path component; the collection defaults to the database
// name.
func New(params map[string]string) (core.Connector, error) {
	host := params[ParamHost]
	if host == "" {
		host = defaultHost
	}

	port := defaultPort
	if raw := params[ParamPort]; raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.Newf(errors.ErrorTypeConfig, "invalid port %q", raw)
		}
		port = p
	}

	database := params[ParamDatabase]
	if database == "" {
		database = params[ParamPath]
	}
	if database == "" {
		database = defaultDatabase
	}

	collection := params[ParamCollection]
	if collection == "" {
		collection = database
	}

	timeout := defaultTimeout
	if raw := params[ParamTimeout]; raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			// Bare numbers are read as seconds.
			secs, serr := strconv.Atoi(raw)
			if serr != nil {
				return nil, errors.Newf(errors.ErrorTypeConfig, "invalid timeout %q", raw)
			}
			d = time.Duration(secs) * time.Second
		}
		timeout = d
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	uri := serverURI(host, port, params[ParamUser], params[ParamPassword])
	// Diagnostics carry the server address only, never the credentials.
	address := fmt.Sprintf("%s:%d", host, port)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(timeout))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeBackend, "cannot connect to mongodb").
			WithDetail("address", address)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, errors.ErrorTypeBackend, "mongodb server unreachable").
			WithDetail("address", address)
	}

	return &Connector{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// serverURI builds the connection URI, percent-encoding any credentials.
func serverURI(host string, port int, user, password string) string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if user != "" {
		if password != "" {
			u.User = url.UserPassword(user, password)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}

func (c *Connector) guard() error {
	if c.closed {
		return errors.New(errors.ErrorTypeClosed, "mongodb connection is closed")
	}
	return nil
}

// Get implements core.Connector.
func (c *Connector) Get(ctx context.Context, key string) (interface{}, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}

	var doc bson.M
	err := c.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, errors.Newf(errors.ErrorTypeMissingKey, "key %q not found", key).WithDetail("key", key)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeBackend, "mongodb read failed").WithDetail("key", key)
	}

	return unwrapDocument(doc), nil
}

// Set implements core.Connector.
func (c *Connector) Set(ctx context.Context, key string, value interface{}) error {
	if err := c.guard(); err != nil {
		return err
	}

	doc, err := wrapValue(key, value)
	if err != nil {
		return err
	}

	_, err = c.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeBackend, "mongodb write failed").WithDetail("key", key)
	}
	return nil
}

// Delete implements core.Connector.
func (c *Connector) Delete(ctx context.Context, key string) error {
	if err := c.guard(); err != nil {
		return err
	}

	res, err := c.collection.DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeBackend, "mongodb delete failed").WithDetail("key", key)
	}
	if res.DeletedCount == 0 {
		return errors.Newf(errors.ErrorTypeMissingKey, "key %q not found", key).WithDetail("key", key)
	}
	return nil
}

// Contains implements core.Connector.
func (c *Connector) Contains(ctx context.Context, key string) (bool, error) {
	if err := c.guard(); err != nil {
		return false, err
	}

	n, err := c.collection.CountDocuments(ctx, bson.M{"_id": key}, options.Count().SetLimit(1))
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeBackend, "mongodb read failed").WithDetail("key", key)
	}
	return n > 0, nil
}

// Iterate streams documents through a server cursor; the iterator must be
// closed to release it.
func (c *Connector) Iterate(ctx context.Context) (core.Iterator, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}

	cursor, err := c.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeBackend, "mongodb scan failed")
	}
	return &iterator{ctx: ctx, cursor: cursor}, nil
}

// Len implements core.Connector.
func (c *Connector) Len(ctx context.Context) (int64, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}

	n, err := c.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeBackend, "mongodb count failed")
	}
	return n, nil
}

// Close disconnects from the server. Idempotent.
func (c *Connector) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.client.Disconnect(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeBackend, "cannot disconnect from mongodb")
	}
	return nil
}

// wrapValue turns a JSON-like value into a document body keyed by _id.
func wrapValue(key string, value interface{}) (bson.M, error) {
	if err := record.Validate(value); err != nil {
		return nil, err
	}

	doc := bson.M{}
	if mapping, ok := value.(map[string]interface{}); ok {
		for k, v := range mapping {
			doc[k] = v
		}
	} else {
		doc[valueField] = value
	}
	doc["_id"] = key
	return doc, nil
}

// unwrapDocument reverses wrapValue: _id is stripped, wrapped scalars are
// unwrapped back to their original shape, and driver-decoded bson types are
// normalized to plain JSON-like values.
func unwrapDocument(doc bson.M) interface{} {
	delete(doc, "_id")
	if len(doc) == 1 {
		if v, ok := doc[valueField]; ok {
			return normalizeValue(v)
		}
	}
	return normalizeValue(doc)
}

// normalizeValue rewrites the named bson types the driver decodes into
// (primitive.M for nested documents, primitive.A for arrays, primitive.D
// under ordered ancestors, primitive.DateTime for timestamps) as the plain
// maps, slices, and time values the record model accepts.
func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.M:
		out := make(map[string]interface{}, len(v))
		for key, elem := range v {
			out[key] = normalizeValue(elem)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, elem := range v {
			out[key] = normalizeValue(elem)
		}
		return out
	case primitive.D:
		out := make(map[string]interface{}, len(v))
		for _, elem := range v {
			out[elem.Key] = normalizeValue(elem.Value)
		}
		return out
	case primitive.A:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = normalizeValue(elem)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = normalizeValue(elem)
		}
		return out
	case primitive.DateTime:
		return v.Time()
	default:
		return v
	}
}

type iterator struct {
	ctx     context.Context
	cursor  *mongo.Cursor
	current record.Record
	err     error
}

func (it *iterator) Next() bool {
	if it.cursor == nil {
		return false
	}

	if !it.cursor.Next(it.ctx) {
		if err := it.cursor.Err(); err != nil {
			it.err = errors.Wrap(err, errors.ErrorTypeBackend, "mongodb scan failed")
		}
		_ = it.Close()
		return false
	}

	var doc bson.M
	if err := it.cursor.Decode(&doc); err != nil {
		it.err = errors.Wrap(err, errors.ErrorTypeBackend, "cannot decode mongodb document")
		_ = it.Close()
		return false
	}

	key, _ := doc["_id"].(string)
	it.current = record.New(key, unwrapDocument(doc))
	return true
}

func (it *iterator) Record() record.Record { return it.current }

func (it *iterator) Err() error { return it.err }

func (it *iterator) Close() error {
	if it.cursor == nil {
		return nil
	}
	err := it.cursor.Close(it.ctx)
	it.cursor = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeBackend, "cannot release mongodb cursor")
	}
	return nil
}
