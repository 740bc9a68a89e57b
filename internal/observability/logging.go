// Package observability provides logging helpers, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Job logs the lifecycle of a background operation such as a reminder sweep.
type Job struct {
	name    string
	started time.Time
	logger  *slog.Logger
}

// StartJob logs the start of a background operation.
func StartJob(ctx context.Context, name string, attrs ...any) *Job {
	j := &Job{name: name, started: time.Now(), logger: slog.Default()}
	j.logger.InfoContext(ctx, "job started", append([]any{slog.String("job", name)}, attrs...)...)
	return j
}

// Done logs successful completion with the elapsed time.
func (j *Job) Done(ctx context.Context, attrs ...any) {
	base := []any{
		slog.String("job", j.name),
		slog.Duration("elapsed", time.Since(j.started)),
	}
	j.logger.InfoContext(ctx, "job completed", append(base, attrs...)...)
}

// Fail logs a failed run.
func (j *Job) Fail(ctx context.Context, err error, attrs ...any) {
	base := []any{
		slog.String("job", j.name),
		slog.Duration("elapsed", time.Since(j.started)),
		slog.String("error", err.Error()),
	}
	j.logger.ErrorContext(ctx, "job failed", append(base, attrs...)...)
}
