package middleware

import (
	"context"
	"net/http"

	logpkg "github.com/benvon/health-chat/internal/logger"
	"github.com/benvon/health-chat/internal/request"
	"go.uber.org/zap"
)

// Audit records access to patient data and rejected requests. Successful reads of the
// API are logged at Info as patient_data_access; 401, 403 and 429 are security events.
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			var user string
			next.ServeHTTP(wrapped, r.WithContext(withAuditHook(r.Context(), &user)))

			fields := []zap.Field{
				zap.String("request_id", request.RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
				zap.Int("status_code", wrapped.statusCode),
			}
			switch wrapped.statusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				logger.Warn("security_event", fields...)
			case http.StatusTooManyRequests:
				logger.Warn("rate_limit_violation", fields...)
			default:
				if user != "" {
					logger.Info("patient_data_access", append(fields, zap.String("user_id", logpkg.SanitizeUserID(user)))...)
				}
			}
		})
	}
}

type auditKey struct{}

// withAuditHook lets Auth, which runs inside Audit, report the authenticated user back out
func withAuditHook(ctx context.Context, user *string) context.Context {
	return context.WithValue(ctx, auditKey{}, user)
}

func auditUser(ctx context.Context, userID string) {
	if p, ok := ctx.Value(auditKey{}).(*string); ok {
		*p = userID
	}
}
