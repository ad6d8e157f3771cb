package middleware

import (
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds every non-streaming request
const DefaultRequestTimeout = 30 * time.Second

const timeoutBody = `{"success":false,"error":"Request Timeout","message":"The request took too long to complete"}`

// Timeout answers 503 with a JSON error once timeout elapses and cancels the handler's
// context. The wrapped writer cannot flush, so event stream routes are mounted outside it.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		handler := http.TimeoutHandler(next, timeout, timeoutBody)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only visible when the timeout fires; handler headers replace it otherwise.
			w.Header().Set("Content-Type", "application/json")
			handler.ServeHTTP(w, r)
		})
	}
}
