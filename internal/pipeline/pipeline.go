// Package pipeline implements the migration engine that streams records from
// a source connector to a destination connector.
//
// The stream is synchronous and sequential: at most one record is in flight
// between read and successful write, so destination backpressure propagates
// directly to the source read and records reach the destination in source
// iteration order. Callers that want parallelism can shard key ranges across
// independent migrations.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evhart/preserve/pkg/connector/core"
	"github.com/evhart/preserve/pkg/errors"
	"github.com/evhart/preserve/pkg/logger"
	"github.com/evhart/preserve/pkg/record"
)

// Filter decides whether a record is migrated. Returning false skips it.
type Filter func(record.Record) bool

// Transform rewrites a record before it is written to the destination.
type Transform func(record.Record) (record.Record, error)

// Options control a migration run. The zero value migrates every record
// unchanged with partial-failure semantics.
type Options struct {
	// Filter skips records it rejects; nil keeps everything.
	Filter Filter

	// Transform rewrites records before writing; nil is identity.
	Transform Transform

	// FailFast aborts the migration on the first per-record failure
	// instead of tallying it and continuing.
	FailFast bool

	// ProgressEvery emits a progress log line every N written records.
	// Zero disables progress logging.
	ProgressEvery int64
}

// Report carries the counters and failure list of one migration run. The
// counters are mutated as records stream through and are final once Migrate
// returns.
type Report struct {
	JobID      string        `json:"job_id"`
	Read       int64         `json:"read"`
	Written    int64         `json:"written"`
	Skipped    int64         `json:"skipped"`
	Failed     int64         `json:"failed"`
	FailedKeys []string      `json:"failed_keys,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Migrate streams every record from src to dst. Both connectors must already
// be open and remain owned by the caller: the pipeline only consumes them
// and closes neither, on success or abort.
//
// Per-record destination failures are tallied and iteration continues unless
// Options.FailFast is set, in which case the first failure aborts the run.
// Source iteration failures always abort: a lost source mid-stream cannot be
// tallied away. The returned report is valid in both cases.
func Migrate(ctx context.Context, src, dst core.Connector, opts *Options) (*Report, error) {
	if opts == nil {
		opts = &Options{}
	}

	report := &Report{JobID: uuid.NewString()}
	log := logger.Get().With(
		zap.String("component", "migration"),
		zap.String("job_id", report.JobID))

	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	log.Info("starting migration", zap.Bool("fail_fast", opts.FailFast))

	it, err := src.Iterate(ctx)
	if err != nil {
		return report, errors.Wrap(err, wrapType(err), "cannot iterate source")
	}
	defer func() { _ = it.Close() }()

	for it.Next() {
		if err := ctx.Err(); err != nil {
			return report, errors.Wrap(err, errors.ErrorTypeBackend, "migration cancelled")
		}

		rec := it.Record()
		report.Read++

		if opts.Filter != nil && !opts.Filter(rec) {
			report.Skipped++
			continue
		}

		if opts.Transform != nil {
			transformed, err := opts.Transform(rec)
			if err != nil {
				report.Failed++
				report.FailedKeys = append(report.FailedKeys, rec.Key)
				if opts.FailFast {
					return report, errors.Wrap(err, wrapType(err), "transform failed").
						WithDetail("key", rec.Key)
				}
				log.Warn("transform failed, skipping record",
					zap.String("key", rec.Key), zap.Error(err))
				continue
			}
			rec = transformed
		}

		if err := dst.Set(ctx, rec.Key, rec.Value); err != nil {
			report.Failed++
			report.FailedKeys = append(report.FailedKeys, rec.Key)
			if opts.FailFast {
				return report, errors.Wrap(err, wrapType(err), "destination write failed").
					WithDetail("key", rec.Key)
			}
			log.Warn("destination write failed, continuing",
				zap.String("key", rec.Key), zap.Error(err))
			continue
		}
		report.Written++

		if opts.ProgressEvery > 0 && report.Written%opts.ProgressEvery == 0 {
			log.Info("migration progress",
				zap.Int64("read", report.Read),
				zap.Int64("written", report.Written),
				zap.Int64("skipped", report.Skipped),
				zap.Int64("failed", report.Failed))
		}
	}

	if err := it.Err(); err != nil {
		// A broken source iteration aborts rather than tallies: the
		// remaining record set is unknown.
		return report, errors.Wrap(err, wrapType(err), "source iteration failed")
	}

	log.Info("migration completed",
		zap.Int64("read", report.Read),
		zap.Int64("written", report.Written),
		zap.Int64("skipped", report.Skipped),
		zap.Int64("failed", report.Failed),
		zap.Duration("duration", time.Since(start)))

	return report, nil
}

// wrapType preserves a structured error's type and classifies anything else
// as a backend failure.
func wrapType(err error) errors.ErrorType {
	if t := errors.TypeOf(err); t != errors.ErrorTypeInternal {
		return t
	}
	return errors.ErrorTypeBackend
}
