package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
)

// ContextKey is the key type for values this package stores in a context.
type ContextKey string

const (
	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDHeader carries a caller-supplied trace ID, echoed in responses
	TraceIDHeader = "X-Request-ID"

	// TraceIDLength is the number of random bytes in a generated trace ID
	TraceIDLength = 16
)

// caller-supplied IDs are accepted only if they look harmless in logs
var traceIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)

// SetTraceID adds a freshly generated trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// WithTraceID stores id as the trace ID, generating one when id is empty
// or malformed.
func WithTraceID(ctx context.Context, id string) context.Context {
	if !traceIDPattern.MatchString(id) {
		return SetTraceID(ctx)
	}
	return context.WithValue(ctx, TraceIDKey, id)
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// generateTraceID returns 32 hex characters. If crypto/rand fails it falls
// back to the bytes of a random UUID, never a static value.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if n, err := rand.Read(b); err != nil || n != TraceIDLength {
		slog.Error("failed to generate secure random trace ID",
			"error", err,
			"bytes_read", n,
			"fallback", "uuid")
		id := uuid.New()
		return hex.EncodeToString(id[:])
	}
	return hex.EncodeToString(b)
}
