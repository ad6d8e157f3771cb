package ai

import (
	"context"
	"sort"
)

// Role values accepted in ChatMessage
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TextGenerator is an opaque text-completion capability that streams its answer
type TextGenerator interface {
	// Stream generates a completion and calls onToken for every text delta, in order.
	// Returning an error from onToken stops generation and Stream returns that error.
	Stream(ctx context.Context, req CompletionRequest, onToken func(string) error) error

	// Name returns the provider name used in logs
	Name() string
}

// ChatMessage represents a message in a chat conversation
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// CompletionRequest is a single generation request
type CompletionRequest struct {
	System   string
	Messages []ChatMessage
	// Draft is a deterministic answer composed from grounding data. Providers that cannot
	// reach a model stream it verbatim.
	Draft     string
	MaxTokens int
}

// ProviderFactory creates a text generator from string configuration
type ProviderFactory func(config map[string]string) (TextGenerator, error)

// ProviderRegistry stores available AI providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// DefaultRegistry returns a registry with every built-in provider registered
func DefaultRegistry() *ProviderRegistry {
	r := NewProviderRegistry()
	RegisterOpenAI(r)
	RegisterGemini(r)
	RegisterOffline(r)
	return r
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(name string, config map[string]string) (TextGenerator, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(config)
}

// Names lists registered providers in sorted order
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}
