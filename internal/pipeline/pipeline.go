package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidsum/internal/fileutil"
	"vidsum/internal/jobs"
	"vidsum/internal/logging"
	"vidsum/internal/media/audio"
	"vidsum/internal/media/fetch"
	"vidsum/internal/scenes"
	"vidsum/internal/services"
	"vidsum/internal/stage"
	"vidsum/internal/stageexec"
	"vidsum/internal/summary"
	"vidsum/internal/transcribe"
	"vidsum/internal/transcript"
	"vidsum/internal/workdir"
)

// ErrCanceled is returned when the context ends between stages. The job is
// returned to pending so a later run resumes from its artifacts.
var ErrCanceled = errors.New("pipeline canceled")

// Observer receives job outcomes and stage timings. *metrics.Registry
// satisfies it.
type Observer interface {
	ObserveJob(outcome string)
	ObserveStage(stage string, elapsed time.Duration)
}

// Deps are the capabilities a pipeline drives. Sink, Observer, and Logger
// are optional.
type Deps struct {
	Fetcher     fetch.Fetcher
	Extractor   audio.Extractor
	Transcriber transcribe.Transcriber
	Summarizer  *summary.Summarizer
	Sink        stageexec.StatusSink
	Observer    Observer
	Logger      *slog.Logger
}

// Options tune a pipeline.
type Options struct {
	WorkRoot           string
	ChunkWidth         time.Duration
	SummaryConcurrency int
}

// Pipeline runs jobs. It holds no per-job state and is safe for concurrent
// use by jobs with distinct ids.
type Pipeline struct {
	deps Deps
	opts Options
}

// New validates deps and returns a pipeline.
func New(deps Deps, opts Options) (*Pipeline, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case deps.Extractor == nil:
		return nil, errors.New("pipeline: extractor is required")
	case deps.Transcriber == nil:
		return nil, errors.New("pipeline: transcriber is required")
	case strings.TrimSpace(opts.WorkRoot) == "":
		return nil, errors.New("pipeline: work root is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Summarizer == nil {
		deps.Summarizer = summary.New(nil, summary.WithLogger(deps.Logger))
	}
	if opts.SummaryConcurrency < 1 {
		opts.SummaryConcurrency = 1
	}
	return &Pipeline{deps: deps, opts: opts}, nil
}

// run carries the per-job state threaded through the stages.
type run struct {
	job       Job
	ref       string
	layout    *workdir.Layout
	media     string
	segments  []transcript.Segment
	haveAudio bool
	haveText  bool
}

// Run executes job to a terminal state. A fatal stage failure returns a
// *StageError alongside an Outcome in the Failed state. Cancellation between
// stages returns ErrCanceled. ErrBusy from workdir is returned untouched when
// another run holds the job directory; no status is written in that case.
func (p *Pipeline) Run(ctx context.Context, job Job) (Outcome, error) {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithUserID(ctx, job.UserID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, p.deps.Logger)

	layout, err := workdir.Open(p.opts.WorkRoot, job.UserID, job.ID)
	if err != nil {
		return p.fail(ctx, logger, job, stage.Fetching, err)
	}
	if err := layout.Lock(); err != nil {
		return Outcome{State: stage.Received}, err
	}
	defer func() {
		if err := layout.Unlock(); err != nil {
			logger.Warn("release job lock", logging.Error(err))
		}
	}()

	logger.Info(
		"job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("source_url", job.SourceURL),
		logging.String("work_dir", layout.Root),
	)

	if err := os.Remove(layout.ResultPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return p.fail(ctx, logger, job, stage.Fetching, fmt.Errorf("remove stale result: %w", err))
	}

	r := &run{job: job, layout: layout}

	steps := []struct {
		state stage.State
		fn    func(*run) stageexec.Func
	}{
		{stage.Fetching, p.fetchStage},
		{stage.Extracting, p.extractStage},
		{stage.Transcribing, p.transcribeStage},
	}
	current := stage.Received
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return p.cancel(ctx, logger, job, current, err)
		}
		if err := p.runStage(ctx, job, step.state, step.fn(r)); err != nil {
			return p.failed(step.state, err)
		}
		current = step.state
	}

	if len(r.segments) == 0 {
		return p.completeEmpty(ctx, logger, r)
	}

	if err := ctx.Err(); err != nil {
		return p.cancel(ctx, logger, job, current, err)
	}
	var result Result
	if err := p.runStage(ctx, job, stage.Segmenting, p.segmentStage(r, &result)); err != nil {
		return p.failed(stage.Segmenting, err)
	}
	return p.complete(ctx, logger, r, result)
}

// claimSource ties the working directory to r.ref. Artifacts left for a
// different reference, or by a run that never recorded one, are discarded
// before anything is reused.
func (r *run) claimSource(logger *slog.Logger) error {
	recorded, ok := r.layout.RecordedSource()
	if ok && recorded == r.ref {
		return nil
	}
	if ok {
		logging.WarnWithContext(logger, "discarding artifacts recorded for another source", "workdir_source_mismatch",
			logging.String("recorded_source", recorded),
			logging.String(logging.FieldImpact, "media is fetched and transcribed again"),
		)
	}
	if err := r.layout.Reset(); err != nil {
		return err
	}
	return r.layout.RecordSource(r.ref)
}

// inspect records which artifacts from an earlier run can be trusted.
// audio.wav only appears through a rename, so its presence means extraction
// finished; transcript.json must also parse and validate.
func (r *run) inspect(logger *slog.Logger) {
	if _, err := os.Stat(r.layout.TranscriptPath()); err == nil {
		segs, err := transcript.Load(r.layout.TranscriptPath())
		if err != nil {
			logging.WarnWithContext(logger, "ignoring unusable transcript from earlier run", "transcript_invalid",
				logging.String(logging.FieldImpact, "transcription will run again"),
				logging.Error(err),
			)
		} else {
			r.segments = segs
			r.haveText = true
		}
	}
	r.haveAudio = fileutil.NonEmptyFile(r.layout.AudioPath())
	if media, ok := r.layout.CompletedMedia(); ok {
		r.media = media
	}
}

func (p *Pipeline) runStage(ctx context.Context, job Job, st stage.State, fn stageexec.Func) error {
	return stageexec.Run(ctx, stageexec.Options{
		Logger:   p.deps.Logger,
		Sink:     p.deps.Sink,
		Observer: p.deps.Observer,
		JobID:    job.ID,
		Stage:    st,
	}, fn)
}

func (p *Pipeline) fetchStage(r *run) stageexec.Func {
	return func(ctx context.Context, logger *slog.Logger) (bool, error) {
		ref, err := fetch.NormalizeReference(r.job.SourceURL)
		if err != nil {
			return false, err
		}
		r.ref = ref
		if err := r.claimSource(logger); err != nil {
			return false, services.Wrap(services.ErrAcquisition, string(stage.Fetching), "claim working directory", "", err)
		}
		r.inspect(logger)
		if r.haveText || r.haveAudio || r.media != "" {
			return true, nil
		}
		if err := r.layout.ClearMediaMark(); err != nil {
			return false, services.Wrap(services.ErrAcquisition, string(stage.Fetching), "clear media marker", "", err)
		}
		media, err := p.deps.Fetcher.Fetch(ctx, ref, r.layout.Root)
		if err != nil {
			return false, ensureMarker(err, services.ErrAcquisition, stage.Fetching, "fetch media")
		}
		if err := r.layout.MarkMedia(media); err != nil {
			logging.WarnWithContext(logger, "could not record completed download", "media_marker_failed",
				logging.String(logging.FieldImpact, "a resumed run will download the media again"),
				logging.Error(err),
			)
		}
		r.media = media
		logger.Info("media fetched", logging.String("media_path", media))
		return false, nil
	}
}

func (p *Pipeline) extractStage(r *run) stageexec.Func {
	return func(ctx context.Context, logger *slog.Logger) (bool, error) {
		if r.haveText || r.haveAudio {
			return true, nil
		}
		tmp := r.layout.AudioTempPath()
		if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			return false, services.Wrap(services.ErrExtraction, string(stage.Extracting), "remove partial audio", "", err)
		}
		if err := p.deps.Extractor.Extract(ctx, r.media, tmp); err != nil {
			return false, ensureMarker(err, services.ErrExtraction, stage.Extracting, "extract audio")
		}
		if err := os.Rename(tmp, r.layout.AudioPath()); err != nil {
			return false, services.Wrap(services.ErrExtraction, string(stage.Extracting), "finalize audio", "", err)
		}
		r.haveAudio = true
		logger.Info("audio extracted", logging.String("audio_path", r.layout.AudioPath()))
		return false, nil
	}
}

func (p *Pipeline) transcribeStage(r *run) stageexec.Func {
	return func(ctx context.Context, logger *slog.Logger) (bool, error) {
		if r.haveText {
			return true, nil
		}
		segs, err := p.deps.Transcriber.Transcribe(ctx, r.layout.AudioPath())
		if err != nil {
			return false, ensureMarker(err, services.ErrTranscription, stage.Transcribing, "transcribe audio")
		}
		segs = transcript.Normalize(segs)
		if err := transcript.Validate(segs); err != nil {
			return false, services.Wrap(services.ErrTranscription, string(stage.Transcribing), "validate transcript", "", err)
		}
		if err := transcript.Save(r.layout.TranscriptPath(), segs); err != nil {
			return false, services.Wrap(services.ErrTranscription, string(stage.Transcribing), "save transcript", "", err)
		}
		r.segments = segs
		r.haveText = true
		logger.Info("transcription finished", logging.Int("segment_count", len(segs)))
		return false, nil
	}
}

func (p *Pipeline) segmentStage(r *run, out *Result) stageexec.Func {
	return func(ctx context.Context, logger *slog.Logger) (bool, error) {
		windows := scenes.Segment(r.segments, p.opts.ChunkWidth)
		p.deps.Summarizer.FillWindows(ctx, windows, p.opts.SummaryConcurrency)
		result := Result{Video: r.ref, Scenes: windows}
		if err := SaveResult(r.layout.ResultPath(), result); err != nil {
			return false, err
		}
		*out = result
		logger.Info("scenes written", logging.Int("scene_count", len(windows)))
		return false, nil
	}
}

func (p *Pipeline) completeEmpty(ctx context.Context, logger *slog.Logger, r *run) (Outcome, error) {
	result := Result{Video: r.ref}
	if err := SaveResult(r.layout.ResultPath(), result); err != nil {
		return p.fail(ctx, logger, r.job, stage.Transcribing, err)
	}
	stageexec.Persist(ctx, logger, p.deps.Sink, r.job.ID, jobs.Update{
		Status:     jobs.StatusCompletedEmpty,
		ResultPath: r.layout.ResultPath(),
	})
	p.observeJob(string(stage.CompletedEmpty))
	logger.Info(
		"job completed without speech",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("status", string(stage.CompletedEmpty)),
	)
	return Outcome{State: stage.CompletedEmpty, Result: &result, ResultPath: r.layout.ResultPath()}, nil
}

func (p *Pipeline) complete(ctx context.Context, logger *slog.Logger, r *run, result Result) (Outcome, error) {
	stageexec.Persist(ctx, logger, p.deps.Sink, r.job.ID, jobs.Update{
		Status:     jobs.StatusCompleted,
		ResultPath: r.layout.ResultPath(),
		SceneCount: len(result.Scenes),
	})
	p.observeJob(string(stage.Completed))
	logger.Info(
		"job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("status", string(stage.Completed)),
		logging.Int("scene_count", len(result.Scenes)),
	)
	return Outcome{State: stage.Completed, Result: &result, ResultPath: r.layout.ResultPath()}, nil
}

// fail handles errors raised outside a stage function. The failure is still
// attributed to st.
func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, job Job, st stage.State, err error) (Outcome, error) {
	logging.ErrorWithContext(logger, "job failed", "stage_failure",
		logging.String(logging.FieldStage, string(st)),
		logging.Error(err),
	)
	stageexec.Persist(ctx, logger, p.deps.Sink, job.ID, jobs.Update{
		Status:  jobs.StatusFailed,
		Stage:   string(st),
		Message: services.Reason(err),
	})
	return p.failed(st, err)
}

// failed builds the outcome for a failure stageexec already persisted.
func (p *Pipeline) failed(st stage.State, err error) (Outcome, error) {
	p.observeJob(string(stage.Failed))
	stageErr := &StageError{Stage: st, Err: err}
	return Outcome{State: stage.Failed, Stage: st, Err: err}, stageErr
}

func (p *Pipeline) cancel(ctx context.Context, logger *slog.Logger, job Job, reached stage.State, cause error) (Outcome, error) {
	logger.Info(
		"job canceled between stages",
		logging.String(logging.FieldEventType, "job_canceled"),
		logging.String("last_stage", string(reached)),
	)
	stageexec.Persist(ctx, logger, p.deps.Sink, job.ID, jobs.Update{Status: jobs.StatusPending})
	p.observeJob("canceled")
	return Outcome{State: reached}, fmt.Errorf("%w: %w", ErrCanceled, cause)
}

func (p *Pipeline) observeJob(outcome string) {
	if p.deps.Observer != nil {
		p.deps.Observer.ObserveJob(outcome)
	}
}

// ensureMarker keeps a capability's own classification and tags anything
// unclassified with the stage's marker.
func ensureMarker(err error, marker error, st stage.State, operation string) error {
	if services.Marker(err) != nil {
		return err
	}
	return services.Wrap(marker, string(st), operation, "", err)
}

// WorkDir returns the working directory a job would use.
func (p *Pipeline) WorkDir(job Job) string {
	return workdir.Dir(p.opts.WorkRoot, job.UserID, job.ID)
}
