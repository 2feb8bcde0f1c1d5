package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evhart/preserve/pkg/errors"
)

func TestValidate(t *testing.T) {
	valid := []struct {
		name  string
		value interface{}
	}{
		{"nil", nil},
		{"bool", true},
		{"int", 42},
		{"float", 3.14},
		{"string", "jam"},
		{"timestamp", time.Now()},
		{"sequence", []interface{}{1, "two", nil}},
		{"mapping", map[string]interface{}{"fruit": "strawberry", "year": 2024}},
		{"nested", map[string]interface{}{
			"batches": []interface{}{
				map[string]interface{}{"count": 3},
			},
		}},
	}

	for _, tt := range valid {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, Validate(tt.value))
		})
	}

	invalid := []struct {
		name  string
		value interface{}
	}{
		{"channel", make(chan int)},
		{"function", func() {}},
		{"typed map", map[int]string{1: "one"}},
		{"sequence with bad element", []interface{}{1, make(chan int)}},
		{"mapping with bad value", map[string]interface{}{"ch": make(chan int)}},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.value)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedValue))
		})
	}
}

func TestValidateDepthLimit(t *testing.T) {
	value := interface{}("leaf")
	for i := 0; i < maxDepth+2; i++ {
		value = []interface{}{value}
	}

	err := Validate(value)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedValue))
}

func TestMarshalRoundTrip(t *testing.T) {
	original := map[string]interface{}{
		"fruit":  "strawberry",
		"sweet":  true,
		"rating": 4.5,
		"tags":   []interface{}{"breakfast", "red"},
	}

	data, err := Marshal(original)
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)

	mapping, ok := decoded.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "strawberry", mapping["fruit"])
	assert.Equal(t, true, mapping["sweet"])
	assert.Equal(t, 4.5, mapping["rating"])
	assert.Equal(t, []interface{}{"breakfast", "red"}, mapping["tags"])
}

func TestMarshalRejectsNonJSONLike(t *testing.T) {
	_, err := Marshal(make(chan int))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedValue))
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte("{not json"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBackend))
}
