package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout bounds a whole streamed completion
	DefaultTimeout = 2 * time.Minute
)

// OpenAIProvider streams completions from an OpenAI-compatible chat completions API
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return NewOpenAIProviderWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIProviderWithLogger creates a new OpenAI provider with logger support
func NewOpenAIProviderWithLogger(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// Name implements TextGenerator
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Stream implements TextGenerator
func (p *OpenAIProvider) Stream(ctx context.Context, req CompletionRequest, onToken func(string) error) error {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: toOpenAIMessages(req),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	requestID := ExtractRequestID(ctx)
	userID := ExtractUserID(ctx)
	if p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("provider", p.Name()),
			zap.String("model", p.model),
			zap.Int("message_count", len(params.Messages)),
			zap.String("system_preview", SanitizePrompt(req.System, false)),
			zap.String("user_id", userID),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	chars := 0
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		chars += len(delta)
		if err := onToken(delta); err != nil {
			return err
		}
	}

	latency := time.Since(start)
	if err := stream.Err(); err != nil {
		p.logger.Debug("llm_api_error",
			zap.String("provider", p.Name()),
			zap.String("model", p.model),
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return fmt.Errorf("failed to stream completion: %w", apiErr)
		}
		return fmt.Errorf("failed to stream completion: %w", err)
	}

	if p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("provider", p.Name()),
			zap.String("model", p.model),
			zap.Int("response_length", chars),
			zap.String("user_id", userID),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return nil
}

func toOpenAIMessages(req CompletionRequest) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// RegisterOpenAI registers the OpenAI provider with the registry
func RegisterOpenAI(registry *ProviderRegistry) {
	registry.Register("openai", func(config map[string]string) (TextGenerator, error) {
		apiKey, ok := config["api_key"]
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("openai api_key is required")
		}

		return NewOpenAIProviderWithLogger(apiKey, config["base_url"], config["model"], nil, config["debug"] == "true"), nil
	})
}
