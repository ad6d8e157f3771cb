// Package request carries per-request values (the authenticated patient, the request ID)
// through contexts and reads client addressing from headers.
package request

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/benvon/health-chat/internal/models"
	"github.com/google/uuid"
)

type contextKey int

const (
	userKey contextKey = iota
	requestIDKey
)

// RequestIDHeader is echoed on every response and accepted from trusted proxies
const RequestIDHeader = "X-Request-ID"

// WithUser attaches the authenticated patient
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated patient, or nil
func UserFromContext(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey).(*models.User)
	return u
}

// WithRequestID attaches a request ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID attached to ctx, or ""
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// IncomingRequestID returns the caller's X-Request-ID when it is a UUID, otherwise a fresh
// one. Arbitrary header values are never trusted into logs.
func IncomingRequestID(r *http.Request) string {
	if id, err := uuid.Parse(strings.TrimSpace(r.Header.Get(RequestIDHeader))); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the remote host
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
