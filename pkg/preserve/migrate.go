package preserve

import (
	"context"

	"go.uber.org/zap"

	"github.com/evhart/preserve/internal/pipeline"
	"github.com/evhart/preserve/pkg/record"
)

// MigrateOptions control a migration run. The zero value migrates every
// record unchanged with partial-failure semantics.
type MigrateOptions struct {
	// Filter skips records it rejects; nil keeps everything.
	Filter func(record.Record) bool

	// Transform rewrites records before writing; nil is identity.
	Transform func(record.Record) (record.Record, error)

	// FailFast aborts the migration on the first per-record failure
	// instead of tallying it and continuing.
	FailFast bool

	// ProgressEvery emits a progress log line every N written records.
	// Zero disables progress logging.
	ProgressEvery int64
}

// MigrateReport carries the counters and failure list of one migration run.
type MigrateReport struct {
	JobID      string   `json:"job_id"`
	Read       int64    `json:"read"`
	Written    int64    `json:"written"`
	Skipped    int64    `json:"skipped"`
	Failed     int64    `json:"failed"`
	FailedKeys []string `json:"failed_keys,omitempty"`
	Duration   string   `json:"duration"`
}

// Migrate streams every record from src to dst in source iteration order,
// one record in flight at a time. Both stores must already be open and
// remain owned by the caller; Migrate closes neither, on success or abort.
//
// Per-record destination failures are tallied and the stream continues
// unless MigrateOptions.FailFast is set. The returned report is valid even
// when an error is returned.
func Migrate(ctx context.Context, src, dst *Store, opts *MigrateOptions) (*MigrateReport, error) {
	report, err := pipeline.Migrate(ctx, src.conn, dst.conn, opts.pipelineOptions())
	return convertReport(report), err
}

// MigrateURI resolves two connection strings, opens both stores, migrates
// every record from source to destination, and closes both stores on every
// exit path.
func MigrateURI(ctx context.Context, source, destination string, opts *MigrateOptions) (*MigrateReport, error) {
	src, err := FromURI(source)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(ctx, src, "source")

	dst, err := FromURI(destination)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(ctx, dst, "destination")

	return Migrate(ctx, src, dst, opts)
}

func closeQuietly(ctx context.Context, store *Store, role string) {
	if err := store.Close(ctx); err != nil {
		store.logger.Warn("failed to close store",
			zap.String("role", role), zap.Error(err))
	}
}

func (o *MigrateOptions) pipelineOptions() *pipeline.Options {
	if o == nil {
		return nil
	}
	return &pipeline.Options{
		Filter:        o.Filter,
		Transform:     o.Transform,
		FailFast:      o.FailFast,
		ProgressEvery: o.ProgressEvery,
	}
}

func convertReport(r *pipeline.Report) *MigrateReport {
	if r == nil {
		return nil
	}
	return &MigrateReport{
		JobID:      r.JobID,
		Read:       r.Read,
		Written:    r.Written,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
		FailedKeys: r.FailedKeys,
		Duration:   r.Duration.String(),
	}
}
