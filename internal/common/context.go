package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeySource    contextKey = "source"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithSource tags the context with the source file being processed.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, ContextKeySource, source)
}

// SourceFromContext extracts the source file from context
func SourceFromContext(ctx context.Context) string {
	if source, ok := ctx.Value(ContextKeySource).(string); ok {
		return source
	}
	return ""
}
