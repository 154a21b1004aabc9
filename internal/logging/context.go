package logging

import (
	"context"
	"log/slog"

	"vidsum/internal/services"
)

// Standard structured field keys.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldUserID        = "user_id"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a line for filtering (stage_start, summary_fallback, ...).
	FieldEventType = "event_type"
	// FieldErrorHint suggests the operator's next step for a failure.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts the job, user, stage, and request identifiers
// stored on ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	lookups := []struct {
		key string
		get func(context.Context) (string, bool)
	}{
		{FieldJobID, services.JobIDFromContext},
		{FieldUserID, services.UserIDFromContext},
		{FieldStage, services.StageFromContext},
		{FieldCorrelationID, services.RequestIDFromContext},
	}
	var fields []slog.Attr
	for _, l := range lookups {
		if value, ok := l.get(ctx); ok {
			fields = append(fields, slog.String(l.key, value))
		}
	}
	return fields
}

// WithContext returns logger tagged with the fields ContextFields finds.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return logger.With(args...)
}
