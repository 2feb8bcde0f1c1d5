// Package record defines the canonical in-memory representation of a key and
// its JSON-like value, shared by every connector and by the migration
// pipeline. Keys are opaque strings; uniqueness is enforced by the backend.
package record

import (
	"time"

	"github.com/evhart/preserve/pkg/errors"
)

// Record pairs a key with its JSON-like value.
type Record struct {
	Key   string
	Value interface{}
}

// New creates a record for the given key and value.
func New(key string, value interface{}) Record {
	return Record{Key: key, Value: value}
}

// Validate checks that a value is JSON-like: nil, bool, a numeric type, a
// string, a time.Time, a []interface{} of JSON-like values, or a
// map[string]interface{} of JSON-like values. Timestamps are accepted because
// backends serialize them as ISO 8601 strings.
//
// Returns an unsupported_value error naming the offending Go type otherwise.
func Validate(value interface{}) error {
	return validate(value, 0)
}

// maxDepth bounds recursion so cyclic structures built through interface{}
// indirection fail instead of overflowing the stack.
const maxDepth = 256

func validate(value interface{}, depth int) error {
	if depth > maxDepth {
		return errors.New(errors.ErrorTypeUnsupportedValue, "value nesting too deep")
	}

	switch v := value.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		time.Time:
		return nil
	case []interface{}:
		for i, elem := range v {
			if err := validate(elem, depth+1); err != nil {
				return errors.Wrap(err, errors.ErrorTypeUnsupportedValue, "invalid sequence element").
					WithDetail("index", i)
			}
		}
		return nil
	case map[string]interface{}:
		for k, elem := range v {
			if err := validate(elem, depth+1); err != nil {
				return errors.Wrap(err, errors.ErrorTypeUnsupportedValue, "invalid mapping value").
					WithDetail("field", k)
			}
		}
		return nil
	default:
		return errors.Newf(errors.ErrorTypeUnsupportedValue, "value of type %T is not JSON-like", value)
	}
}
