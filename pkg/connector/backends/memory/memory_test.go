package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evhart/preserve/pkg/errors"
	"github.com/evhart/preserve/pkg/testutil"
)

func TestBasicOperations(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	conn, err := New(nil)
	require.NoError(t, err)
	defer conn.Close(ctx)

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, conn.Set(ctx, "alpha", map[string]interface{}{"n": float64(1)}))

		value, err := conn.Get(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"n": float64(1)}, value)
	})

	t.Run("contains", func(t *testing.T) {
		ok, err := conn.Contains(ctx, "alpha")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = conn.Contains(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, conn.Set(ctx, "alpha", "second"))
		value, err := conn.Get(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, "second", value)
	})

	t.Run("len", func(t *testing.T) {
		n, err := conn.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, conn.Delete(ctx, "alpha"))
		_, err := conn.Get(ctx, "alpha")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeMissingKey))
	})
}

func TestMissingKey(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	conn, err := New(nil)
	require.NoError(t, err)
	defer conn.Close(ctx)

	_, err = conn.Get(ctx, "ghost")
	assert.True(t, errors.IsType(err, errors.ErrorTypeMissingKey))

	err = conn.Delete(ctx, "ghost")
	assert.True(t, errors.IsType(err, errors.ErrorTypeMissingKey))
}

func TestIterateSnapshot(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	conn, err := New(nil)
	require.NoError(t, err)
	defer conn.Close(ctx)

	keys := []string{"a", "b", "c"}
	for _, key := range keys {
		require.NoError(t, conn.Set(ctx, key, key+"-value"))
	}

	it, err := conn.Iterate(ctx)
	require.NoError(t, err)
	defer it.Close()

	// Mutations after the iterator is created do not disturb the sequence.
	require.NoError(t, conn.Set(ctx, "d", "late"))
	require.NoError(t, conn.Delete(ctx, "a"))

	seen := make(map[string]interface{})
	for it.Next() {
		rec := it.Record()
		seen[rec.Key] = rec.Value
	}
	require.NoError(t, it.Err())

	assert.Len(t, seen, len(keys))
	for _, key := range keys {
		assert.Equal(t, key+"-value", seen[key])
	}
}

func TestClosed(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	conn, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, conn.Close(ctx))

	_, err = conn.Get(ctx, "x")
	assert.True(t, errors.IsType(err, errors.ErrorTypeClosed))

	err = conn.Set(ctx, "x", "v")
	assert.True(t, errors.IsType(err, errors.ErrorTypeClosed))

	_, err = conn.Iterate(ctx)
	assert.True(t, errors.IsType(err, errors.ErrorTypeClosed))

	// Close is idempotent.
	assert.NoError(t, conn.Close(ctx))
}
