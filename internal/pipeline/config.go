package pipeline

import (
	"log/slog"

	"vidsum/internal/config"
	"vidsum/internal/media/audio"
	"vidsum/internal/media/fetch"
	"vidsum/internal/stageexec"
	"vidsum/internal/summary"
	"vidsum/internal/transcribe"
)

// Metrics is the observer surface NewFromConfig wires into every
// component. *metrics.Registry satisfies it.
type Metrics interface {
	Observer
	summary.Observer
}

// NewFromConfig builds a pipeline with the configured fetch, extraction,
// transcription, and summary backends. sink and m may be nil.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, sink stageexec.StatusSink, m Metrics) (*Pipeline, error) {
	transcriber, err := transcribe.New(cfg)
	if err != nil {
		return nil, err
	}
	var summaryObserver summary.Observer
	var observer Observer
	if m != nil {
		summaryObserver = m
		observer = m
	}
	summarizer, err := summary.NewFromConfig(cfg, logger, summaryObserver)
	if err != nil {
		return nil, err
	}
	return New(Deps{
		Fetcher:     fetch.New(cfg),
		Extractor:   audio.NewFFmpeg(cfg.Audio).WithPreferredLanguage(cfg.Transcription.Language),
		Transcriber: transcriber,
		Summarizer:  summarizer,
		Sink:        sink,
		Observer:    observer,
		Logger:      logger,
	}, Options{
		WorkRoot:           cfg.Paths.WorkDir,
		ChunkWidth:         cfg.ChunkWidth(),
		SummaryConcurrency: cfg.Summary.Concurrency,
	})
}
