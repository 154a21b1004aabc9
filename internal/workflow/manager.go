package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vidsum/internal/config"
	"vidsum/internal/jobs"
	"vidsum/internal/logging"
	"vidsum/internal/pipeline"
	"vidsum/internal/services"
	"vidsum/internal/stage"
	"vidsum/internal/workdir"
)

// Runner executes one job. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) (pipeline.Outcome, error)
}

// Manager claims pending jobs and runs them with bounded concurrency.
type Manager struct {
	store      *jobs.Store
	runner     Runner
	logger     *slog.Logger
	heartbeat  *HeartbeatMonitor
	checkers   []stage.Checker
	maxJobs    int
	poll       time.Duration
	errorRetry time.Duration
	reclaim    time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
	lastJob string
	active  map[string]time.Time
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithHealthChecks registers capabilities reported by Status.
func WithHealthChecks(checkers ...stage.Checker) Option {
	return func(m *Manager) { m.checkers = append(m.checkers, checkers...) }
}

// WithHeartbeat overrides the configured heartbeat interval and stale timeout.
func WithHeartbeat(interval, timeout time.Duration) Option {
	return func(m *Manager) {
		m.heartbeat = NewHeartbeatMonitor(m.store, m.logger, interval, timeout)
	}
}

// WithIntervals overrides the configured poll, error-retry, and reclaim
// intervals.
func WithIntervals(poll, errorRetry, reclaim time.Duration) Option {
	return func(m *Manager) {
		m.poll = poll
		m.errorRetry = errorRetry
		m.reclaim = reclaim
	}
}

// NewManager constructs a workflow manager from the [workflow] settings.
func NewManager(cfg *config.Config, store *jobs.Store, runner Runner, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	wf := cfg.Workflow
	m := &Manager{
		store:      store,
		runner:     runner,
		logger:     logger,
		maxJobs:    max(wf.MaxJobs, 1),
		poll:       time.Duration(wf.PollInterval) * time.Second,
		errorRetry: time.Duration(wf.ErrorRetryInterval) * time.Second,
		reclaim:    time.Duration(wf.HeartbeatInterval) * time.Second,
		heartbeat:  HeartbeatFromConfig(cfg, store, logger),
		active:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start returns jobs whose heartbeat went stale to pending and begins
// processing. Jobs with a fresh heartbeat are left alone: they belong to a
// live foreground run or another daemon sharing the job database.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.runner == nil {
		m.mu.Unlock()
		return errors.New("workflow runner not configured")
	}
	if err := m.heartbeat.ReclaimStale(ctx); err != nil {
		m.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_start"),
		logging.Int("max_jobs", m.maxJobs),
	)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		m.reclaimLoop(gctx)
		return nil
	})
	for range m.maxJobs {
		g.Go(func() error {
			m.worker(gctx)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(done)
	}()
	return nil
}

// Stop cancels processing and waits for workers to exit. A running job
// finishes its current stage and returns to pending.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	<-done
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
}

func (m *Manager) worker(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := m.store.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.setLastError(err)
			logging.ErrorWithContext(m.logger, "failed to claim next job", "job_claim_failed",
				logging.String(logging.FieldErrorHint, "check job database access"),
				logging.Error(err),
			)
			wait(ctx, m.errorRetry)
			continue
		}
		if job == nil {
			wait(ctx, m.poll)
			continue
		}
		m.process(ctx, job)
	}
}

func (m *Manager) process(ctx context.Context, record *jobs.Job) {
	m.trackActive(record.ID, true)
	defer m.trackActive(record.ID, false)

	jobCtx := services.WithJobID(ctx, record.ID)
	stopBeat := m.heartbeat.Track(jobCtx, record.ID)
	job := pipeline.Job{ID: record.ID, UserID: record.UserID, SourceURL: record.SourceURL}
	outcome, err := m.runner.Run(jobCtx, job)
	stopBeat()

	logger := logging.WithContext(jobCtx, m.logger)
	switch {
	case err == nil:
		logger.Info("job finished", logging.String("status", string(outcome.State)))
	case errors.Is(err, pipeline.ErrCanceled):
		logger.Info("job interrupted by shutdown", logging.String("last_stage", string(outcome.State)))
	case errors.Is(err, workdir.ErrBusy):
		// The claim stamped a heartbeat; the reclaimer returns the job to
		// pending once it goes stale.
		logging.WarnWithContext(logger, "job directory held by another run", "job_busy",
			logging.String(logging.FieldImpact, "job retried after heartbeat timeout"),
			logging.Error(err),
		)
	default:
		m.setLastError(err)
	}
	m.setLastJob(record.ID)
}

func (m *Manager) reclaimLoop(ctx context.Context) {
	if m.reclaim <= 0 {
		return
	}
	ticker := time.NewTicker(m.reclaim)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.heartbeat.ReclaimStale(ctx); err != nil && ctx.Err() == nil {
				logging.WarnWithContext(m.logger, "reclaim stale jobs failed", "heartbeat_reclaim_failed",
					logging.String(logging.FieldErrorHint, "check job database access"),
					logging.String(logging.FieldImpact, "stuck jobs may remain in flight"),
					logging.Error(err),
				)
			}
		}
	}
}

func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = 10 * time.Millisecond
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
