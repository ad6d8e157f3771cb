// Package app builds the components shared by the server, the worker and healthctl from
// configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/health-chat/internal/cache"
	"github.com/benvon/health-chat/internal/config"
	"github.com/benvon/health-chat/internal/database"
	"github.com/benvon/health-chat/internal/knowledge"
	"github.com/benvon/health-chat/internal/queue"
	"github.com/benvon/health-chat/internal/services/ai"
	"go.uber.org/zap"
)

// CachePrefix namespaces every key this service writes to Redis
const CachePrefix = "health_chat"

const weaviateLimit = 10

// NewGenerator creates the configured text generator. When the provider cannot be created
// the offline generator is returned together with the error, so callers can degrade.
func NewGenerator(cfg *config.Config, logger *zap.Logger, debugMode bool) (ai.TextGenerator, error) {
	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIKey != "" {
			return ai.NewOpenAIProviderWithLogger(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, logger, debugMode), nil
		}
		return ai.NewOfflineProvider(0), fmt.Errorf("OPENAI_API_KEY not configured")
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return ai.NewOfflineProvider(0), fmt.Errorf("GEMINI_API_KEY not configured")
		}
		gen, err := ai.NewGeminiProvider(context.Background(), cfg.GeminiAPIKey, cfg.AIModel, logger)
		if err != nil {
			return ai.NewOfflineProvider(0), err
		}
		return gen, nil
	}

	registry := ai.DefaultRegistry()
	gen, err := registry.GetProvider(cfg.AIProvider, map[string]string{
		"api_key":  cfg.OpenAIKey,
		"model":    cfg.AIModel,
		"base_url": cfg.AIBaseURL,
	})
	if err != nil {
		return ai.NewOfflineProvider(0), err
	}
	return gen, nil
}

// NewKnowledge fans lookups out to every configured backend. store may be nil to disable
// lookup caching.
func NewKnowledge(ctx context.Context, cfg *config.Config, db *database.DB, store cache.Store, logger *zap.Logger) (knowledge.Lookup, error) {
	multi := knowledge.NewMulti(logger)
	for _, backend := range cfg.KnowledgeBackends {
		switch backend {
		case config.KnowledgeStatic:
			catalog, err := knowledge.DefaultCatalog()
			if err != nil {
				return nil, fmt.Errorf("failed to load knowledge catalog: %w", err)
			}
			multi.Add(backend, catalog)
		case config.KnowledgePostgres:
			if db == nil {
				return nil, fmt.Errorf("postgres knowledge backend needs a database")
			}
			multi.Add(backend, database.NewKnowledgeRepository(db))
		case config.KnowledgeWeaviate:
			wv, err := NewWeaviate(ctx, cfg)
			if err != nil {
				return nil, err
			}
			multi.Add(backend, wv)
		}
	}

	if store == nil || cfg.KnowledgeCacheTTL <= 0 {
		return multi, nil
	}
	return knowledge.NewCached(multi, store, cfg.KnowledgeCacheTTL, logger), nil
}

// NewWeaviate connects to the configured Weaviate instance and makes sure the fact class
// exists
func NewWeaviate(ctx context.Context, cfg *config.Config) (*knowledge.Weaviate, error) {
	wv, err := knowledge.NewWeaviate(cfg.WeaviateHost, weaviateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	if err := wv.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure weaviate schema: %w", err)
	}
	return wv, nil
}

// ConnectQueue dials RabbitMQ, retrying with exponential backoff to ride out broker startup
func ConnectQueue(ctx context.Context, amqpURL string, logger *zap.Logger) (*queue.RabbitMQQueue, error) {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(amqpURL, logger)
		if err == nil {
			return q, nil
		}
		lastErr = err

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		logger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", maxRetries, lastErr)
}
