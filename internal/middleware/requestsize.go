package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// DefaultMaxRequestSize bounds request bodies. A chat request carries the whole
// conversation, which stays well below this.
const DefaultMaxRequestSize int64 = 1 << 20

// MaxRequestSize rejects bodies declared larger than maxBytes and caps the rest while they
// are read
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				respondErrorJSON(w, r, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "Request body is too large", zap.NewNop())
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
