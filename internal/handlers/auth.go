package handlers

import (
	"net/http"

	"github.com/benvon/health-chat/internal/middleware"
	"github.com/gorilla/mux"
)

// AuthConfig is the public identity-provider configuration clients need to obtain tokens
type AuthConfig struct {
	Issuer   string `json:"issuer"`
	Audience string `json:"audience,omitempty"`
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	config AuthConfig
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(config AuthConfig) *AuthHandler {
	return &AuthHandler{config: config}
}

// RegisterPublicRoutes registers routes that need no token
func (h *AuthHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/config", h.GetConfig).Methods("GET")
}

// RegisterRoutes registers authenticated auth routes
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods("GET")
}

// GetConfig returns the identity provider configuration
func (h *AuthHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.config)
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	respondJSON(w, http.StatusOK, user)
}
