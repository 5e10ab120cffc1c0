// Package uid generates request identifiers and carries them through a
// request's context into log lines.
package uid

import (
	"context"
	"log"

	"github.com/google/uuid"
)

type contextKey struct{}

// New generates a new random UUID.
func New() string {
	return uuid.NewString()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Normalize returns id in canonical form if it is a UUID, or a new UUID otherwise.
func Normalize(id string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return New()
	}
	return parsed.String()
}

// WithRequestID returns a context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// RequestID returns the request id carried by ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// Logf logs like log.Printf and appends the request id carried by ctx, so a
// "[Component] ..." line can be traced back to the HTTP request behind it.
func Logf(ctx context.Context, format string, args ...any) {
	if id := RequestID(ctx); id != "" {
		format += " request_id=%s"
		args = append(args, id)
	}
	log.Printf(format, args...)
}
