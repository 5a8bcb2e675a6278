package logger

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// CorrelationField is the log field and metadata name carrying the request correlation id.
const CorrelationField = "correlation_id"

const maxCorrelationLength = 64

type correlationKey struct{}

// WithCorrelationID attaches id to ctx. Blank or unsafe ids leave ctx unchanged.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id, ok := NormalizeCorrelationID(id)
	if !ok {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id attached to ctx, if any.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// FromContext decorates base with the correlation id of ctx.
func FromContext(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	if id := CorrelationID(ctx); id != "" {
		return base.With().Str(CorrelationField, id).Logger()
	}
	return base
}

// NormalizeCorrelationID trims id and reports whether it is safe to persist in object
// metadata and queue messages: at most 64 characters of letters, digits, '-', '_', '.' or ':'.
func NormalizeCorrelationID(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxCorrelationLength {
		return "", false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return "", false
		}
	}
	return id, true
}
