package summary

import (
	"errors"
	"log/slog"

	"vidsum/internal/config"
	"vidsum/internal/logging"
	"vidsum/internal/services/gemini"
	"vidsum/internal/services/llm"
)

// NewCapability builds the configured backend. It returns nil for the
// "none" backend and, with a warning, when the backend has no API key, so
// jobs still complete with placeholder summaries.
func NewCapability(cfg *config.Config, logger *slog.Logger) (Capability, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	sc := cfg.Summary
	switch sc.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendOpenRouter:
		if sc.APIKey == "" {
			warnMissingKey(logger, sc.Backend)
			return nil, nil
		}
		return llm.NewClient(llm.Config{
			APIKey:         sc.APIKey,
			BaseURL:        sc.BaseURL,
			Model:          sc.Model,
			Referer:        sc.Referer,
			Title:          sc.Title,
			Prompt:         sc.Prompt,
			TimeoutSeconds: sc.TimeoutSeconds,
		}), nil
	case config.BackendGemini:
		client, err := gemini.NewClient(gemini.Config{
			APIKey:         sc.APIKey,
			Model:          sc.Model,
			Prompt:         sc.Prompt,
			TimeoutSeconds: sc.TimeoutSeconds,
		})
		if errors.Is(err, gemini.ErrNoKeys) {
			warnMissingKey(logger, sc.Backend)
			return nil, nil
		}
		return client, err
	default:
		return nil, errors.New("unknown summary backend " + sc.Backend)
	}
}

// NewFromConfig builds a Summarizer with the configured backend and limits.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, observer Observer) (*Summarizer, error) {
	capability, err := NewCapability(cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(capability,
		WithMaxChars(cfg.Summary.MaxInputChars),
		WithLogger(logger),
		WithObserver(observer),
	), nil
}

func warnMissingKey(logger *slog.Logger, backend string) {
	logging.WarnWithContext(logger, "summary backend has no api key", "summary_backend_disabled",
		logging.String("backend", backend),
		logging.String(logging.FieldErrorHint, "set summary.api_key or the backend's API key environment variable"),
		logging.String(logging.FieldImpact, "every window summary will read \""+UnavailableSummary+"\""),
	)
}
