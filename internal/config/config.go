package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/health-chat/internal/analytics"
)

// Knowledge backend names accepted by KNOWLEDGE_BACKENDS
const (
	KnowledgeStatic   = "static"
	KnowledgePostgres = "postgres"
	KnowledgeWeaviate = "weaviate"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	BaseURL          string
	FrontendURL      string
	EnableHSTS       bool
	ServerDebugMode  bool
	WorkerDebugMode  bool
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int

	OIDCIssuer   string
	OIDCAudience string
	OIDCJWKSURL  string

	AIProvider   string
	AIModel      string
	AIBaseURL    string
	OpenAIKey    string
	GeminiAPIKey string

	KnowledgeBackends []string
	WeaviateHost      string
	KnowledgeCacheTTL time.Duration

	ChatHistoryDays       int
	InsightHistoryDays    int
	RouterConfidenceFloor float64
	Thresholds            analytics.Thresholds

	RateLimit    string
	OTELEnabled  bool
	OTELEndpoint string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	defaults := analytics.DefaultThresholds()
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),

		OIDCIssuer:   getEnv("OIDC_ISSUER", ""),
		OIDCAudience: getEnv("OIDC_AUDIENCE", ""),
		OIDCJWKSURL:  getEnv("OIDC_JWKS_URL", ""),

		AIProvider:   strings.ToLower(getEnv("AI_PROVIDER", "openai")),
		AIModel:      getEnv("AI_MODEL", ""),
		AIBaseURL:    getEnv("AI_BASE_URL", ""),
		OpenAIKey:    getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),

		KnowledgeBackends: getEnvList("KNOWLEDGE_BACKENDS", []string{KnowledgeStatic}),
		WeaviateHost:      getEnv("WEAVIATE_HOST", ""),
		KnowledgeCacheTTL: time.Duration(getEnvInt("KNOWLEDGE_CACHE_TTL_SECONDS", 3600)) * time.Second,

		ChatHistoryDays:       getEnvInt("CHAT_HISTORY_DAYS", 30),
		InsightHistoryDays:    getEnvInt("INSIGHT_HISTORY_DAYS", 7),
		RouterConfidenceFloor: getEnvFloat("ROUTER_CONFIDENCE_FLOOR", 0.5),
		Thresholds: analytics.Thresholds{
			TargetLow:    getEnvFloat("GLUCOSE_TARGET_LOW", defaults.TargetLow),
			TargetHigh:   getEnvFloat("GLUCOSE_TARGET_HIGH", defaults.TargetHigh),
			MinReadings:  defaults.MinReadings,
			TrendShift:   getEnvFloat("TREND_SHIFT_THRESHOLD", defaults.TrendShift),
			HighCV:       getEnvFloat("VARIABILITY_CV_THRESHOLD", defaults.HighCV),
			LowAdherence: getEnvFloat("ADHERENCE_THRESHOLD", defaults.LowAdherence),
		},

		RateLimit:    getEnv("RATE_LIMIT", "5-S"),
		OTELEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.AIProvider {
	case "openai", "gemini", "offline":
	default:
		return fmt.Errorf("AI_PROVIDER must be openai, gemini or offline, got %q", c.AIProvider)
	}
	for _, backend := range c.KnowledgeBackends {
		switch backend {
		case KnowledgeStatic, KnowledgePostgres:
		case KnowledgeWeaviate:
			if c.WeaviateHost == "" {
				return fmt.Errorf("WEAVIATE_HOST is required when the weaviate knowledge backend is enabled")
			}
		default:
			return fmt.Errorf("unknown knowledge backend %q", backend)
		}
	}
	if c.Thresholds.TargetLow >= c.Thresholds.TargetHigh {
		return fmt.Errorf("GLUCOSE_TARGET_LOW (%.0f) must be below GLUCOSE_TARGET_HIGH (%.0f)", c.Thresholds.TargetLow, c.Thresholds.TargetHigh)
	}
	if c.RouterConfidenceFloor < 0 || c.RouterConfidenceFloor > 1 {
		return fmt.Errorf("ROUTER_CONFIDENCE_FLOOR must be within [0, 1], got %f", c.RouterConfidenceFloor)
	}
	if c.ChatHistoryDays < 1 || c.InsightHistoryDays < 1 {
		return fmt.Errorf("history windows must be at least one day")
	}
	return nil
}

// AuthEnabled reports whether bearer tokens are verified against an identity provider
func (c *Config) AuthEnabled() bool {
	return c.OIDCIssuer != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
