package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	logpkg "github.com/benvon/health-chat/internal/logger"
	"github.com/benvon/health-chat/internal/models"
	"github.com/benvon/health-chat/internal/request"
	"go.uber.org/zap"
)

// TokenVerifier verifies a bearer token and returns its claims
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.JWTClaims, error)
}

// UserSyncer maps verified claims to a local user, creating it on first sight
type UserSyncer interface {
	SyncFromClaims(ctx context.Context, claims *models.JWTClaims) (*models.User, error)
}

// UserFromContext extracts the user from the request context
func UserFromContext(r *http.Request) *models.User {
	return request.UserFromContext(r)
}

// Auth creates authentication middleware that validates bearer JWTs
func Auth(verifier TokenVerifier, users UserSyncer, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, http.StatusUnauthorized, "Missing Authorization header")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				respondError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			ctx := r.Context()
			claims, err := verifier.Verify(ctx, strings.TrimSpace(token))
			if err != nil {
				logger.Info("token_verification_failed",
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("error", logpkg.SanitizeError(err)))
				respondError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			user, err := users.SyncFromClaims(ctx, claims)
			if err != nil {
				logger.Error("user_sync_failed",
					zap.String("subject", logpkg.SanitizeUserID(claims.Sub)),
					zap.Error(err))
				respondError(w, http.StatusInternalServerError, "Failed to load user")
				return
			}

			auditUser(ctx, user.ID.String())
			next.ServeHTTP(w, r.WithContext(request.WithUser(ctx, user)))
		})
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success": false,
		"error":   message,
	}
	_ = json.NewEncoder(w).Encode(response)
}
