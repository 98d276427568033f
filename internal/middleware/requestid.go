package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// requestIDKey is the context key for request ID.
type requestIDKey struct{}

// RequestIDHeader is the HTTP header name for request ID.
const RequestIDHeader = "X-Request-ID"

// WithRequestID stores a request id in the context. Requests sent with this
// context reuse it instead of generating a fresh one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// GetRequestID returns the request ID from context. Returns empty string if not present.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestID sets X-Request-ID on every outgoing request. An id already on the
// request header or in the context wins; otherwise a new UUID is generated.
// The id is also placed on the request context for inner middleware.
func RequestID(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = GetRequestID(r.Context())
		}
		if id == "" {
			id = uuid.New().String()
		}

		r = r.Clone(WithRequestID(r.Context(), id))
		r.Header.Set(RequestIDHeader, id)
		return next.RoundTrip(r)
	})
}
