package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/benvon/health-chat/internal/validation"
)

const maxErrorMessageLength = 200

// envelope is the body of every non-streaming response
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeEnvelope(w http.ResponseWriter, status int, body envelope) {
	body.Timestamp = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(payload, '\n'))
}

// respondJSON sends a success envelope
func respondJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, envelope{Success: true, Data: data})
}

// respondJSONError sends an error envelope. Messages reach patients' screens, so they are
// stripped of control characters and bounded.
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	writeEnvelope(w, status, envelope{Error: errorType, Message: sanitizeErrorMessage(message)})
}

func sanitizeErrorMessage(message string) string {
	sanitized := validation.SanitizeText(message)
	if r := []rune(sanitized); len(r) > maxErrorMessageLength {
		sanitized = string(r[:maxErrorMessageLength]) + "..."
	}
	return sanitized
}
