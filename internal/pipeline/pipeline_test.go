package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evhart/preserve/pkg/connector/backends/memory"
	"github.com/evhart/preserve/pkg/connector/core"
	"github.com/evhart/preserve/pkg/errors"
	"github.com/evhart/preserve/pkg/record"
	"github.com/evhart/preserve/pkg/testutil"
)

func seededSource(t *testing.T, ctx context.Context, n int) core.Connector {
	t.Helper()
	src, err := memory.New(nil)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		key := string(rune('a' + i))
		require.NoError(t, src.Set(ctx, key, map[string]interface{}{"key": key}))
	}
	return src
}

// failingDest wraps a connector and fails writes for chosen keys.
type failingDest struct {
	core.Connector
	failKeys map[string]bool
}

func (d *failingDest) Set(ctx context.Context, key string, value interface{}) error {
	if d.failKeys[key] {
		return errors.Newf(errors.ErrorTypeBackend, "write rejected for %q", key)
	}
	return d.Connector.Set(ctx, key, value)
}

func TestMigrateAll(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	src := seededSource(t, ctx, 3)
	dst, err := memory.New(nil)
	require.NoError(t, err)

	report, err := Migrate(ctx, src, dst, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, report.JobID)
	assert.Equal(t, int64(3), report.Read)
	assert.Equal(t, int64(3), report.Written)
	assert.Equal(t, int64(0), report.Skipped)
	assert.Equal(t, int64(0), report.Failed)
	assert.Empty(t, report.FailedKeys)

	n, err := dst.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// The pipeline closes neither connector.
	_, err = src.Len(ctx)
	assert.NoError(t, err)
}

func TestMigrateFilter(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	src := seededSource(t, ctx, 4)
	dst, err := memory.New(nil)
	require.NoError(t, err)

	t.Run("partial filter", func(t *testing.T) {
		report, err := Migrate(ctx, src, dst, &Options{
			Filter: func(rec record.Record) bool { return rec.Key != "a" },
		})
		require.NoError(t, err)

		assert.Equal(t, int64(4), report.Read)
		assert.Equal(t, int64(3), report.Written)
		assert.Equal(t, int64(1), report.Skipped)

		ok, err := dst.Contains(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("filter everything", func(t *testing.T) {
		empty, err := memory.New(nil)
		require.NoError(t, err)

		report, err := Migrate(ctx, src, empty, &Options{
			Filter: func(record.Record) bool { return false },
		})
		require.NoError(t, err)

		assert.Equal(t, int64(4), report.Read)
		assert.Equal(t, int64(0), report.Written)
		assert.Equal(t, int64(4), report.Skipped)
	})
}

func TestMigrateTransform(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	src, err := memory.New(nil)
	require.NoError(t, err)
	require.NoError(t, src.Set(ctx, "name", "plum"))

	dst, err := memory.New(nil)
	require.NoError(t, err)

	report, err := Migrate(ctx, src, dst, &Options{
		Transform: func(rec record.Record) (record.Record, error) {
			s, _ := rec.Value.(string)
			return record.New(rec.Key, strings.ToUpper(s)), nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Written)

	value, err := dst.Get(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "PLUM", value)
}

func TestMigratePartialFailure(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	src := seededSource(t, ctx, 4)
	inner, err := memory.New(nil)
	require.NoError(t, err)
	dst := &failingDest{Connector: inner, failKeys: map[string]bool{"b": true, "d": true}}

	report, err := Migrate(ctx, src, dst, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(4), report.Read)
	assert.Equal(t, int64(2), report.Written)
	assert.Equal(t, int64(2), report.Failed)
	assert.ElementsMatch(t, []string{"b", "d"}, report.FailedKeys)
}

func TestMigrateFailFast(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	src := seededSource(t, ctx, 4)
	inner, err := memory.New(nil)
	require.NoError(t, err)
	dst := &failingDest{Connector: inner, failKeys: map[string]bool{"a": true, "b": true, "c": true, "d": true}}

	report, err := Migrate(ctx, src, dst, &Options{FailFast: true})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBackend))

	// The run aborted on the first failure.
	assert.Equal(t, int64(1), report.Read)
	assert.Equal(t, int64(0), report.Written)
	assert.Equal(t, int64(1), report.Failed)
	assert.Len(t, report.FailedKeys, 1)
}

func TestMigrateTransformFailure(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	src := seededSource(t, ctx, 2)
	dst, err := memory.New(nil)
	require.NoError(t, err)

	report, err := Migrate(ctx, src, dst, &Options{
		Transform: func(rec record.Record) (record.Record, error) {
			return record.Record{}, errors.Newf(errors.ErrorTypeUnsupportedValue, "cannot transform %q", rec.Key)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.Read)
	assert.Equal(t, int64(0), report.Written)
	assert.Equal(t, int64(2), report.Failed)
}

func TestMigrateCancelled(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	src := seededSource(t, ctx, 3)
	dst, err := memory.New(nil)
	require.NoError(t, err)

	cancelled, stop := context.WithCancel(ctx)
	stop()

	_, err = Migrate(cancelled, src, dst, nil)
	require.Error(t, err)
}

func TestMigrateClosedSource(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	src, err := memory.New(nil)
	require.NoError(t, err)
	require.NoError(t, src.Close(ctx))

	dst, err := memory.New(nil)
	require.NoError(t, err)

	report, err := Migrate(ctx, src, dst, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeClosed))
	assert.Equal(t, int64(0), report.Read)
}
