package ai

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultGeminiModel is the default Gemini model
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiProvider streams completions from the Gemini API
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiProvider creates a Gemini provider using an API key
func NewGeminiProvider(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiProvider, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model, logger: logger}, nil
}

// Name implements TextGenerator
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Stream implements TextGenerator
func (p *GeminiProvider) Stream(ctx context.Context, req CompletionRequest, onToken func(string) error) error {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	start := time.Now()
	for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, toGeminiContents(req.Messages), cfg) {
		if err != nil {
			p.logger.Debug("llm_api_error",
				zap.String("provider", p.Name()),
				zap.String("model", p.model),
				zap.Error(err),
				zap.String("request_id", ExtractRequestID(ctx)),
				zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			)
			if apiErr := ExtractAPIError(err); apiErr != nil {
				return fmt.Errorf("failed to stream completion: %w", apiErr)
			}
			return fmt.Errorf("failed to stream completion: %w", err)
		}
		if text := resp.Text(); text != "" {
			if err := onToken(text); err != nil {
				return err
			}
		}
	}
	return nil
}

func toGeminiContents(messages []ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

// RegisterGemini registers the Gemini provider with the registry
func RegisterGemini(registry *ProviderRegistry) {
	registry.Register("gemini", func(config map[string]string) (TextGenerator, error) {
		apiKey := config["api_key"]
		if apiKey == "" {
			return nil, fmt.Errorf("gemini api_key is required")
		}
		return NewGeminiProvider(context.Background(), apiKey, config["model"], nil)
	})
}
