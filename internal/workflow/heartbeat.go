package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vidsum/internal/config"
	"vidsum/internal/jobs"
	"vidsum/internal/logging"
)

// HeartbeatMonitor keeps the last_heartbeat column of a running job fresh
// and returns jobs whose worker went silent to pending. A job is stale once
// its heartbeat is older than timeout, which must comfortably exceed interval.
type HeartbeatMonitor struct {
	store    *jobs.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewHeartbeatMonitor returns a monitor; a nil logger discards output.
func NewHeartbeatMonitor(store *jobs.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HeartbeatMonitor{store: store, logger: logger, interval: interval, timeout: timeout}
}

// HeartbeatFromConfig builds a monitor from the [workflow] heartbeat settings.
// The daemon and foreground runs share it so both keep the same liveness
// contract on the job database.
func HeartbeatFromConfig(cfg *config.Config, store *jobs.Store, logger *slog.Logger) *HeartbeatMonitor {
	return NewHeartbeatMonitor(
		store,
		logger,
		time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
		time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
	)
}

// ReclaimStale resets in-flight jobs whose heartbeat is older than the timeout.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context) error {
	if h.timeout <= 0 {
		return nil
	}
	reclaimed, err := h.store.ReclaimStale(ctx, time.Now().Add(-h.timeout))
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		logging.WarnWithContext(h.logger, "returned stale jobs to pending", "jobs_reclaimed",
			logging.Int64("count", reclaimed),
			logging.Duration("stale_after", h.timeout),
			logging.String(logging.FieldImpact, "jobs restart from their cached artifacts"),
		)
	}
	return nil
}

// Beat refreshes the heartbeat for jobID every interval until ctx ends.
// Failures are logged and retried on the next tick; a job only goes stale
// after sustained failures.
func (h *HeartbeatMonitor) Beat(ctx context.Context, jobID string) {
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	logger := logging.WithContext(ctx, h.logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.Heartbeat(ctx, jobID); err != nil && !errors.Is(err, context.Canceled) {
				logging.WarnWithContext(logger, "heartbeat update failed", "heartbeat_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check that the job database is writable"),
				)
			}
		}
	}
}

// Track runs Beat for jobID in the background until the returned stop
// function is called. Beats outlive cancellation of ctx, because a canceled
// run still finishes its current stage; stop waits for the goroutine to exit.
func (h *HeartbeatMonitor) Track(ctx context.Context, jobID string) (stop func()) {
	beatCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Beat(beatCtx, jobID)
	}()
	return func() {
		cancel()
		<-done
	}
}
