package record

import (
	gojson "github.com/goccy/go-json"

	"github.com/evhart/preserve/pkg/errors"
)

// Marshal encodes a JSON-like value for storage in a file-backed backend.
// The value is validated first so backends never persist something they
// cannot read back.
func Marshal(value interface{}) ([]byte, error) {
	if err := Validate(value); err != nil {
		return nil, err
	}

	data, err := gojson.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeUnsupportedValue, "value is not serializable")
	}
	return data, nil
}

// Unmarshal decodes a stored value. Numbers decode as float64 and objects as
// map[string]interface{}, matching encoding/json conventions; values written
// through Marshal always round-trip into that shape.
func Unmarshal(data []byte) (interface{}, error) {
	var value interface{}
	if err := gojson.Unmarshal(data, &value); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeBackend, "stored value is not valid JSON")
	}
	return value, nil
}
