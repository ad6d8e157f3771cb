package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/benvon/health-chat/internal/knowledge"
	"github.com/benvon/health-chat/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// KnowledgeHandler exposes read-only fact lookups
type KnowledgeHandler struct {
	lookup knowledge.Lookup
	logger *zap.Logger
}

// NewKnowledgeHandler creates a knowledge handler
func NewKnowledgeHandler(lookup knowledge.Lookup, logger *zap.Logger) *KnowledgeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KnowledgeHandler{lookup: lookup, logger: logger}
}

// RegisterRoutes registers knowledge routes
func (h *KnowledgeHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/knowledge/lookup", h.Lookup).Methods("POST")
}

// LookupRequest is the body of a knowledge lookup
type LookupRequest struct {
	Entities []string `json:"entities" validate:"required,min=1,max=20,dive,required,max=100"`
	Domain   string   `json:"domain" validate:"required,knowledge_domain"`
}

// Lookup handles POST /knowledge/lookup. An empty fact list is a normal answer.
func (h *KnowledgeHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Validation Error", validation.Describe(err))
		return
	}
	domain, err := knowledge.ParseDomain(req.Domain)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Validation Error", err.Error())
		return
	}

	facts, err := h.lookup.Lookup(r.Context(), req.Entities, domain)
	if err != nil {
		h.logger.Error("knowledge_lookup_failed", zap.String("domain", string(domain)), zap.Error(err))
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Knowledge lookup failed")
		return
	}
	if facts == nil {
		facts = []knowledge.Fact{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"domain": domain,
		"facts":  facts,
	})
}
