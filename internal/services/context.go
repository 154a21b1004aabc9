package services

import "context"

// contextKey scopes the values below to this package.
type contextKey int

const (
	jobIDKey contextKey = iota
	userIDKey
	stageKey
	requestIDKey
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueOf(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithJobID records the job being processed. Blank ids leave ctx unchanged,
// as do the other With helpers.
func WithJobID(ctx context.Context, id string) context.Context { return withValue(ctx, jobIDKey, id) }

// JobIDFromContext returns the job recorded by WithJobID.
func JobIDFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, jobIDKey) }

// WithUserID records the user who submitted the job.
func WithUserID(ctx context.Context, id string) context.Context {
	return withValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the user recorded by WithUserID.
func UserIDFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, userIDKey) }

// WithStage records the pipeline stage currently running.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage recorded by WithStage.
func StageFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, stageKey) }

// WithRequestID records a correlation id, either an API request or one
// pipeline run.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the id recorded by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, requestIDKey) }
