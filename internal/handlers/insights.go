package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/benvon/health-chat/internal/middleware"
	"github.com/benvon/health-chat/internal/services/insights"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MaxInsightDays bounds the insight window a client may request
const MaxInsightDays = 90

// InsightReader returns a user's insights
type InsightReader interface {
	Get(ctx context.Context, userID uuid.UUID, windowDays int) (*insights.Result, bool, error)
}

// InsightsHandler serves computed insights
type InsightsHandler struct {
	reader      InsightReader
	defaultDays int
	logger      *zap.Logger
}

// NewInsightsHandler creates an insights handler
func NewInsightsHandler(reader InsightReader, defaultDays int, logger *zap.Logger) *InsightsHandler {
	if defaultDays <= 0 {
		defaultDays = insights.DefaultWindowDays
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InsightsHandler{reader: reader, defaultDays: defaultDays, logger: logger}
}

// RegisterRoutes registers insight routes
func (h *InsightsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/insights", h.GetInsights).Methods("GET")
}

type insightsResponse struct {
	*insights.Result
	Cached bool `json:"cached"`
}

// GetInsights handles GET /insights?days=N
func (h *InsightsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	days := h.defaultDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxInsightDays {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "days must be an integer between 1 and 90")
			return
		}
		days = n
	}

	result, cached, err := h.reader.Get(r.Context(), user.ID, days)
	if err != nil {
		h.logger.Error("insights_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to compute insights")
		return
	}
	respondJSON(w, http.StatusOK, insightsResponse{Result: result, Cached: cached})
}
