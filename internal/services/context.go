package services

import "context"

type contextKey string

const (
	clipIDKey contextKey = "clip_id"
	runIDKey  contextKey = "run_id"
)

// WithClipID annotates context with the clip identifier being processed.
func WithClipID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, clipIDKey, id)
}

// ClipIDFromContext extracts the clip identifier if present.
func ClipIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(clipIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRunID annotates context with the pipeline run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the pipeline run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(runIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}
