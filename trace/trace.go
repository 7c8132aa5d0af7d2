// Package trace carries the request ID of an outgoing API call through context.Context
// so every attempt of the same call, and the error reported for it, share one ID.
package trace

import (
	"context"
	nethttp "net/http"
	"strings"

	"github.com/google/uuid"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	requestIDKey contextKey = "request_id"

	// HeaderXRequestID is the standard header name for request tracing
	HeaderXRequestID = "X-Request-ID"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID from context if present
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureRequestID returns the request ID from context or generates a new one
func EnsureRequestID(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	return NewRequestID()
}

// NewRequestID generates a random request ID
func NewRequestID() string {
	return uuid.New().String()
}

// FromHeader returns the first non-empty request ID among the given header names.
// X-Request-ID is consulted when no names are given.
func FromHeader(h nethttp.Header, names ...string) (string, bool) {
	if len(names) == 0 {
		names = []string{HeaderXRequestID}
	}
	for _, name := range names {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return v, true
		}
	}
	return "", false
}
