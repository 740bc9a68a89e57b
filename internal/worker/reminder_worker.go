// Package worker runs periodic background jobs inside the server process.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"bookswap/internal/middleware"
	"bookswap/internal/service"
)

// Sweeper is the job the reminder worker repeats.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// ReminderWorker runs a sweep immediately and then on every tick until its
// context is cancelled.
type ReminderWorker struct {
	sweeper  Sweeper
	interval time.Duration
	done     chan struct{}
}

// NewReminderWorker returns a worker; a non-positive interval means one hour.
func NewReminderWorker(sweeper Sweeper, interval time.Duration) *ReminderWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReminderWorker{sweeper: sweeper, interval: interval, done: make(chan struct{})}
}

// Start launches the loop in its own goroutine.
func (w *ReminderWorker) Start(ctx context.Context) {
	go w.Run(ctx)
}

// Done is closed once Run returns.
func (w *ReminderWorker) Done() <-chan struct{} {
	return w.done
}

// Run blocks until ctx is cancelled.
func (w *ReminderWorker) Run(ctx context.Context) {
	defer close(w.done)
	middleware.Logger.Info("reminder worker started", slog.Duration("interval", w.interval))

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			middleware.Logger.Info("reminder worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce keeps a panicking sweep from taking the server down.
func (w *ReminderWorker) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("reminder sweep panicked",
				slog.String("panic", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	if ctx.Err() != nil {
		return
	}
	res, err := w.sweeper.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			middleware.Logger.Error("reminder sweep failed", slog.String("error", err.Error()))
		}
		return
	}
	if res.Sent > 0 || res.Failed > 0 {
		middleware.Logger.Info("reminder sweep finished",
			slog.Int("sent", res.Sent), slog.Int("failed", res.Failed), slog.Int("skipped", res.Skipped))
	}
}
