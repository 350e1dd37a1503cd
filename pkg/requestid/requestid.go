package requestid

import (
	"context"
	"regexp"

	"github.com/google/uuid"
)

// Header carries the request id in both directions.
const Header = "X-Request-Id"

type contextKey struct{}

var validID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

func Generate() string {
	return uuid.NewString()
}

// Sanitize returns id when it is safe to log and echo back, and "" otherwise.
func Sanitize(id string) string {
	if !validID.MatchString(id) {
		return ""
	}
	return id
}

func ToContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// FromContext returns "" when the context carries no request id.
func FromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(contextKey{}).(string); ok {
		return requestID
	}
	return ""
}

// FromContextPtr is FromContext for optional api fields.
func FromContextPtr(ctx context.Context) *string {
	if requestID := FromContext(ctx); requestID != "" {
		return &requestID
	}
	return nil
}
