package middleware

import (
	"mime"
	"net/http"

	"go.uber.org/zap"
)

// ContentType requires JSON bodies on POST, PUT and PATCH. Requests without a body are let
// through.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength == 0 && r.Header.Get("Content-Type") == "" {
			next.ServeHTTP(w, r)
			return
		}

		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch {
		case err != nil:
			respondErrorJSON(w, r, http.StatusBadRequest, "Bad Request", "Content-Type header is missing or invalid", zap.NewNop())
		case mediaType != "application/json":
			respondErrorJSON(w, r, http.StatusUnsupportedMediaType, "Unsupported Media Type", "Content-Type must be application/json", zap.NewNop())
		default:
			next.ServeHTTP(w, r)
		}
	})
}
