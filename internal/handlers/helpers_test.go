package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benvon/health-chat/internal/models"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func TestRespondJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		data     any
		wantData bool
	}{
		{
			name:     "insight list",
			status:   http.StatusOK,
			data:     []models.Insight{{Title: "Glucose variability: high", Detail: "CV 41%", Source: "glucose-variability"}},
			wantData: true,
		},
		{name: "nil data", status: http.StatusCreated, data: nil, wantData: false},
		{name: "empty list", status: http.StatusOK, data: []models.Insight{}, wantData: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			respondJSON(w, tt.status, tt.data)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected application/json, got %q", ct)
			}
			body := decodeEnvelope(t, w)
			if body["success"] != true {
				t.Errorf("Expected success true, got %v", body["success"])
			}
			ts, _ := body["timestamp"].(string)
			if _, err := time.Parse(time.RFC3339, ts); err != nil {
				t.Errorf("Expected RFC3339 timestamp, got %q", ts)
			}
			if _, ok := body["data"]; ok != tt.wantData {
				t.Errorf("Expected data present=%v, got %v", tt.wantData, ok)
			}
			if _, ok := body["error"]; ok {
				t.Error("Expected no error field on success")
			}
		})
	}
}

func TestRespondJSON_EncodeFailure(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	respondJSON(w, http.StatusOK, math.Inf(1))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 for unencodable data, got %d", w.Code)
	}
}

func TestRespondJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		errorType   string
		message     string
		wantMessage string
	}{
		{name: "bad request", status: http.StatusBadRequest, errorType: "Bad Request", message: "days must be between 1 and 90", wantMessage: "days must be between 1 and 90"},
		{name: "records unavailable", status: http.StatusInternalServerError, errorType: "Internal Server Error", message: "Record store unavailable", wantMessage: "Record store unavailable"},
		{name: "control characters", status: http.StatusBadRequest, errorType: "Validation Error", message: "bad\x00 value\r", wantMessage: "bad value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			respondJSONError(w, tt.status, tt.errorType, tt.message)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			body := decodeEnvelope(t, w)
			if body["success"] != false {
				t.Error("Expected success to be false")
			}
			if body["error"] != tt.errorType {
				t.Errorf("Expected error %q, got %v", tt.errorType, body["error"])
			}
			if body["message"] != tt.wantMessage {
				t.Errorf("Expected message %q, got %v", tt.wantMessage, body["message"])
			}
			if _, ok := body["data"]; ok {
				t.Error("Expected no data field on error")
			}
		})
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", maxErrorMessageLength+10)
	got := sanitizeErrorMessage(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != maxErrorMessageLength+3 {
		t.Errorf("Expected truncation at %d runes, got %d", maxErrorMessageLength, len([]rune(got)))
	}
}
