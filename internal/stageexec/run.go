package stageexec

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"vidsum/internal/jobs"
	"vidsum/internal/logging"
	"vidsum/internal/services"
	"vidsum/internal/stage"
)

// StatusSink receives job status transitions. *jobs.Store satisfies it.
type StatusSink interface {
	SetStatus(ctx context.Context, id string, update jobs.Update) error
}

// Observer records how long each stage took.
type Observer interface {
	ObserveStage(stage string, elapsed time.Duration)
}

// Func performs the work of one stage. It reports resumed=true when the
// stage found a valid artifact from an earlier run and did no work.
type Func func(ctx context.Context, logger *slog.Logger) (resumed bool, err error)

// Options controls stage execution and status persistence.
type Options struct {
	Logger   *slog.Logger
	Sink     StatusSink
	Observer Observer
	JobID    string
	Stage    stage.State
}

// Run marks the job as working in opts.Stage, executes fn, and persists a
// failed status when fn returns an error. Stage work runs on a context
// detached from cancellation so an in-flight tool call finishes; callers
// check for cancellation between stages.
func Run(ctx context.Context, opts Options, fn Func) error {
	if fn == nil {
		return errors.New("stage function is required")
	}
	name := string(opts.Stage)
	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, opts.Logger)

	logger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("stage_label", stage.Label(opts.Stage)),
	)
	persist(stageCtx, logger, opts, jobs.Update{Status: StatusFor(opts.Stage), Stage: name})

	started := time.Now()
	resumed, err := fn(context.WithoutCancel(stageCtx), logger)
	elapsed := time.Since(started)
	if err != nil {
		return handleFailure(stageCtx, logger, opts, err)
	}
	if opts.Observer != nil && !resumed {
		opts.Observer.ObserveStage(name, elapsed)
	}

	event := "stage_complete"
	if resumed {
		event = "stage_resumed"
	}
	logger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, event),
		logging.Duration("elapsed", elapsed.Round(time.Millisecond)),
	)
	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, stageErr error) error {
	message := strings.TrimSpace(services.Reason(stageErr))
	if message == "" {
		message = "stage failed"
	}
	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("resolved_status", string(jobs.StatusFailed)),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)
	persist(ctx, logger, opts, jobs.Update{
		Status:  jobs.StatusFailed,
		Stage:   string(opts.Stage),
		Message: message,
	})
	return stageErr
}

// Persist applies update through the sink, logging instead of failing when
// the store is unavailable. The pipeline's outcome does not depend on the
// status record.
func Persist(ctx context.Context, logger *slog.Logger, sink StatusSink, jobID string, update jobs.Update) {
	persist(ctx, logger, Options{Sink: sink, JobID: jobID}, update)
}

func persist(ctx context.Context, logger *slog.Logger, opts Options, update jobs.Update) {
	if opts.Sink == nil || strings.TrimSpace(opts.JobID) == "" {
		return
	}
	if err := opts.Sink.SetStatus(context.WithoutCancel(ctx), opts.JobID, update); err != nil {
		logging.WarnWithContext(
			logger,
			"failed to persist job status",
			"status_persist_failed",
			logging.String("status", string(update.Status)),
			logging.String(logging.FieldImpact, "job record may lag behind the pipeline"),
			logging.Error(err),
		)
	}
}

// StatusFor maps a pipeline state onto the persisted job status.
func StatusFor(s stage.State) jobs.Status {
	if s == stage.Received {
		return jobs.StatusPending
	}
	return jobs.Status(s)
}
