// Package summary applies the per-window summarization policy on top of a
// pluggable text summarization capability.
//
// Summarize never fails. Blank text yields NoSpeechSummary without calling
// the capability; any capability error or empty reply yields
// UnavailableSummary and a summary_fallback warning.
package summary

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"vidsum/internal/logging"
	"vidsum/internal/scenes"
	"vidsum/internal/services"
)

const (
	NoSpeechSummary    = "No spoken content."
	UnavailableSummary = "Summary unavailable."

	// DefaultMaxChars bounds the text sent to the capability.
	DefaultMaxChars = 3500
)

// Result labels for Observer.
const (
	ResultOK          = "ok"
	ResultNoSpeech    = "no_speech"
	ResultUnavailable = "unavailable"
)

// Capability turns text into a short summary.
type Capability interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Observer receives one result label per summarized window.
type Observer interface {
	ObserveSummary(result string)
}

// Summarizer wraps a Capability with truncation and sentinel fallbacks.
type Summarizer struct {
	capability Capability
	maxChars   int
	logger     *slog.Logger
	observer   Observer
}

// Option customizes a Summarizer.
type Option func(*Summarizer)

// WithMaxChars overrides the truncation limit (in runes).
func WithMaxChars(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.maxChars = n
		}
	}
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Summarizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers a result observer (metrics).
func WithObserver(observer Observer) Option {
	return func(s *Summarizer) {
		s.observer = observer
	}
}

// New builds a Summarizer. A nil capability is allowed; every non-blank
// window then summarizes to UnavailableSummary.
func New(capability Capability, opts ...Option) *Summarizer {
	s := &Summarizer{
		capability: capability,
		maxChars:   DefaultMaxChars,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize returns a summary for text. It never returns an error.
func (s *Summarizer) Summarize(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		s.observe(ResultNoSpeech)
		return NoSpeechSummary
	}
	if s.capability == nil {
		s.fallback(ctx, services.Wrap(services.ErrSummarization, "segmenting", "summarize", "no summarization backend configured", nil))
		return UnavailableSummary
	}

	summary, err := s.capability.Summarize(ctx, Truncate(text, s.maxChars))
	if err != nil {
		s.fallback(ctx, services.Wrap(services.ErrSummarization, "segmenting", "summarize", "backend request failed", err))
		return UnavailableSummary
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		s.fallback(ctx, services.Wrap(services.ErrSummarization, "segmenting", "summarize", "backend returned empty summary", nil))
		return UnavailableSummary
	}
	s.observe(ResultOK)
	return summary
}

// FillWindows summarizes every window in place with at most limit
// concurrent capability calls. Order and window bounds are unchanged.
func (s *Summarizer) FillWindows(ctx context.Context, windows []scenes.Window, limit int) {
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range windows {
		g.Go(func() error {
			windows[i].Summary = s.Summarize(ctx, windows[i].Transcript)
			return nil
		})
	}
	_ = g.Wait()
}

// Truncate returns at most n runes of text.
func Truncate(text string, n int) string {
	if n <= 0 {
		return text
	}
	count := 0
	for idx := range text {
		if count == n {
			return text[:idx]
		}
		count++
	}
	return text
}

func (s *Summarizer) fallback(ctx context.Context, err error) {
	s.observe(ResultUnavailable)
	details := services.Details(err)
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "summary unavailable for window", "summary_fallback",
		logging.String("reason", services.Reason(err)),
		logging.String("error_kind", details.Kind),
		logging.String(logging.FieldErrorHint, "check summary backend credentials and quota"),
		logging.String(logging.FieldImpact, "window summary replaced with placeholder"),
	)
}

func (s *Summarizer) observe(result string) {
	if s.observer != nil {
		s.observer.ObserveSummary(result)
	}
}
