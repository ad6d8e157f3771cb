package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	logpkg "github.com/benvon/health-chat/internal/logger"
	"github.com/benvon/health-chat/internal/middleware"
	"github.com/benvon/health-chat/internal/request"
	"github.com/benvon/health-chat/internal/services/ai"
	"github.com/benvon/health-chat/internal/stream"
	"github.com/benvon/health-chat/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// DefaultPingInterval is the keep-alive period of an open event stream
const DefaultPingInterval = 15 * time.Second

// TurnRunner produces the events of one chat turn
type TurnRunner interface {
	Run(ctx context.Context, userID uuid.UUID, req stream.ChatRequest, out stream.Sink) error
}

// ChatHandler streams chat turns as server-sent events
type ChatHandler struct {
	runner       TurnRunner
	logger       *zap.Logger
	pingInterval time.Duration
}

// NewChatHandler creates a new chat handler. A non-positive ping interval uses DefaultPingInterval.
func NewChatHandler(runner TurnRunner, logger *zap.Logger, pingInterval time.Duration) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	return &ChatHandler{runner: runner, logger: logger, pingInterval: pingInterval}
}

// RegisterRoutes registers chat routes
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/chat/stream", h.Stream).Methods("POST")
}

// Stream runs one turn for the authenticated user and streams its events. Errors found
// before the stream opens are plain JSON responses; afterwards they travel as error frames.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req stream.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Validation Error", validation.Describe(err))
		return
	}
	for i := range req.Messages {
		req.Messages[i].Content = validation.SanitizeText(req.Messages[i].Content)
	}

	if _, ok := w.(http.Flusher); !ok {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Streaming unsupported")
		return
	}
	out := stream.NewSSEWriter(w)

	ctx, cancel := context.WithCancel(ai.WithRequestID(r.Context(), request.RequestID(r.Context())))
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := out.Ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	if err := h.runner.Run(ctx, user.ID, req, out); err != nil && ctx.Err() == nil {
		h.logger.Warn("chat_stream_ended_with_error",
			zap.String("user_id", logpkg.SanitizeUserID(user.ID.String())),
			zap.String("error", logpkg.SanitizeError(err)))
	}
	cancel()
	wg.Wait()
}
