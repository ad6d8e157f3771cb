package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benvon/health-chat/internal/agents"
	"github.com/benvon/health-chat/internal/app"
	"github.com/benvon/health-chat/internal/cache"
	"github.com/benvon/health-chat/internal/config"
	"github.com/benvon/health-chat/internal/database"
	"github.com/benvon/health-chat/internal/handlers"
	"github.com/benvon/health-chat/internal/logger"
	"github.com/benvon/health-chat/internal/middleware"
	"github.com/benvon/health-chat/internal/queue"
	"github.com/benvon/health-chat/internal/records"
	"github.com/benvon/health-chat/internal/router"
	"github.com/benvon/health-chat/internal/services/chat"
	"github.com/benvon/health-chat/internal/services/insights"
	"github.com/benvon/health-chat/internal/services/oidc"
	"github.com/benvon/health-chat/internal/telemetry"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const serviceName = "health-chat-api"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(serviceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Strings("knowledge_backends", cfg.KnowledgeBackends),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	if !cfg.AuthEnabled() {
		zapLogger.Fatal("oidc_issuer_not_configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing := false
	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(ctx, serviceName, cfg.OTELEndpoint)
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracing = true
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.EnsureSchema(ctx); err != nil {
		zapLogger.Fatal("failed_to_apply_schema", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	store := cache.NewRedis(redisClient, app.CachePrefix)
	zapLogger.Info("connected_to_redis")

	checks := map[string]handlers.CheckFunc{
		"database": db.HealthCheck,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}

	// Without a broker, turns still run but insights are only computed on request
	var jobQueue *queue.RabbitMQQueue
	if cfg.RabbitMQURL != "" {
		jobQueue, err = app.ConnectQueue(ctx, cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		checks["rabbitmq"] = jobQueue.HealthCheck
		zapLogger.Info("connected_to_rabbitmq")
	} else {
		zapLogger.Warn("job_queue_disabled")
	}

	userRepo := database.NewUserRepository(db)
	recordRepo := database.NewRecordRepository(db)

	lookup, err := app.NewKnowledge(ctx, cfg, db, store, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_initialize_knowledge", zap.Error(err))
	}

	generator, err := app.NewGenerator(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Warn("ai_provider_unavailable_using_offline_answers", zap.Error(err))
	}

	assembler := records.NewAssembler(recordRepo,
		records.WithWindowDays(cfg.ChatHistoryDays),
		records.WithLogger(zapLogger))
	insightService := insights.NewService(assembler, store,
		insights.WithThresholds(cfg.Thresholds),
		insights.WithLogger(zapLogger))

	producerOpts := []chat.Option{
		chat.WithThresholds(cfg.Thresholds),
		chat.WithLogger(zapLogger),
	}
	if jobQueue != nil {
		scheduler := insights.NewScheduler(store, jobQueue, insights.DefaultDebounce, cfg.InsightHistoryDays)
		producerOpts = append(producerOpts, chat.WithCompletionHook(func(ctx context.Context, userID uuid.UUID) {
			if _, err := scheduler.Schedule(ctx, userID); err != nil {
				zapLogger.Warn("insight_refresh_schedule_failed",
					zap.String("user_id", logger.SanitizeUserID(userID.String())),
					zap.Error(err))
			}
		}))
	}
	producer := chat.NewProducer(
		router.New(cfg.RouterConfidenceFloor),
		agents.NewSet(generator, lookup, agents.WithLogger(zapLogger)),
		assembler,
		producerOpts...,
	)

	oidcProvider := oidc.NewProvider(oidc.Config{
		Issuer:   cfg.OIDCIssuer,
		Audience: cfg.OIDCAudience,
		JWKSURL:  cfg.OIDCJWKSURL,
	})
	verifier := oidc.NewVerifier(oidc.NewJWKSManager(oidc.DefaultJWKSTTL), oidcProvider)
	authMW := middleware.Auth(verifier, userRepo, zapLogger)

	rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	authHandler := handlers.NewAuthHandler(handlers.AuthConfig{Issuer: cfg.OIDCIssuer, Audience: cfg.OIDCAudience})
	chatHandler := handlers.NewChatHandler(producer, zapLogger, handlers.DefaultPingInterval)
	insightsHandler := handlers.NewInsightsHandler(insightService, cfg.InsightHistoryDays, zapLogger)
	knowledgeHandler := handlers.NewKnowledgeHandler(lookup, zapLogger)
	healthChecker := handlers.NewHealthChecker(checks)

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, outermost first
	if tracing {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORSFromEnv(cfg.FrontendURL))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")

	openAPIHandler, err := handlers.LoadOpenAPIHandler(filepath.Join("api", "openapi", "openapi.yaml"))
	if err != nil {
		zapLogger.Warn("openapi_document_unavailable", zap.Error(err))
	} else {
		openAPIHandler.RegisterRoutes(r)
	}

	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	publicAuth := apiRouter.PathPrefix("/auth").Subrouter()
	publicAuth.Use(rateLimitMW)
	publicAuth.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	authHandler.RegisterPublicRoutes(publicAuth)

	protectedAuth := apiRouter.PathPrefix("/auth").Subrouter()
	protectedAuth.Use(authMW, rateLimitMW, middleware.Timeout(middleware.DefaultRequestTimeout))
	authHandler.RegisterRoutes(protectedAuth)

	// Streams run as long as the turn does and cannot sit behind Timeout
	streamRouter := apiRouter.PathPrefix("").Subrouter()
	streamRouter.Use(authMW, rateLimitMW)
	chatHandler.RegisterRoutes(streamRouter)

	protected := apiRouter.PathPrefix("").Subrouter()
	protected.Use(authMW, rateLimitMW, middleware.Timeout(middleware.DefaultRequestTimeout))
	insightsHandler.RegisterRoutes(protected)
	knowledgeHandler.RegisterRoutes(protected)

	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would cut long-running event streams. Other routes are bounded
		// by the Timeout middleware.
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	if jobQueue != nil {
		dlqGC := queue.NewGarbageCollector(jobQueue, time.Hour, 24*time.Hour, zapLogger)
		go func() {
			if err := dlqGC.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", time.Hour),
			zap.Duration("retention", 24*time.Hour))
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("server_shutting_down", zap.Int("active_turns", producer.Registry().Len()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}
