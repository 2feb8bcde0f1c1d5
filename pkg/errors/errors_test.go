package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrorTypeMissingKey, "key not found")
	require.NotNil(t, err)
	assert.Equal(t, ErrorTypeMissingKey, err.Type)
	assert.Equal(t, "missing_key: key not found", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestNewf(t *testing.T) {
	err := Newf(ErrorTypeUnknownBackend, "backend %s not registered", "demo")
	assert.Equal(t, "unknown_backend: backend demo not registered", err.Error())
}

func TestWrap(t *testing.T) {
	t.Run("wraps a plain error", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := Wrap(cause, ErrorTypeBackend, "cannot open backend")
		require.NotNil(t, err)
		assert.Equal(t, ErrorTypeBackend, err.Type)
		assert.Equal(t, cause, err.Unwrap())
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("nil passes through", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrorTypeBackend, "ignored"))
	})

	t.Run("preserves inner stack", func(t *testing.T) {
		inner := New(ErrorTypeMissingKey, "key gone")
		wrapped := Wrap(inner, ErrorTypeBackend, "read failed")
		assert.Equal(t, inner.Stack, wrapped.Stack)
	})
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeInvalidURI, "no scheme")
	assert.True(t, IsType(err, ErrorTypeInvalidURI))
	assert.False(t, IsType(err, ErrorTypeBackend))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeInvalidURI))

	wrapped := Wrap(err, ErrorTypeConfig, "resolution failed")
	assert.True(t, IsType(wrapped, ErrorTypeConfig))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeClosed, TypeOf(New(ErrorTypeClosed, "closed")))
	assert.Equal(t, ErrorTypeInternal, TypeOf(fmt.Errorf("plain")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeMissingKey, "key not found").WithDetail("key", "a")
	assert.Equal(t, "a", err.Details["key"])
}

func TestAsError(t *testing.T) {
	structured, ok := AsError(fmt.Errorf("outer: %w", New(ErrorTypeBackend, "disk full")))
	require.True(t, ok)
	assert.Equal(t, ErrorTypeBackend, structured.Type)

	_, ok = AsError(fmt.Errorf("plain"))
	assert.False(t, ok)
}
