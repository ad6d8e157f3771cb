package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/health-chat/internal/app"
	"github.com/benvon/health-chat/internal/cache"
	"github.com/benvon/health-chat/internal/config"
	"github.com/benvon/health-chat/internal/database"
	"github.com/benvon/health-chat/internal/logger"
	"github.com/benvon/health-chat/internal/queue"
	"github.com/benvon/health-chat/internal/records"
	"github.com/benvon/health-chat/internal/services/insights"
	"github.com/benvon/health-chat/internal/telemetry"
	"github.com/benvon/health-chat/internal/workers"
	"go.uber.org/zap"
)

const serviceName = "health-chat-worker"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	planFlag := flag.Bool("plan", true, "Schedule twice-daily insight refreshes for active users")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(serviceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	if cfg.RabbitMQURL == "" {
		zapLogger.Fatal("rabbitmq_url_not_configured")
	}

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
		zap.Int("insight_history_days", cfg.InsightHistoryDays))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(ctx, serviceName, cfg.OTELEndpoint)
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
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

	jobQueue, err := app.ConnectQueue(ctx, cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")

	recordRepo := database.NewRecordRepository(db)
	assembler := records.NewAssembler(recordRepo, records.WithLogger(zapLogger))
	insightService := insights.NewService(assembler, store,
		insights.WithThresholds(cfg.Thresholds),
		insights.WithLogger(zapLogger))
	refresher := workers.NewInsightRefresher(insightService, jobQueue, cfg.InsightHistoryDays, zapLogger)

	if *planFlag {
		planner := workers.NewRefreshPlanner(jobQueue, recordRepo, cfg.InsightHistoryDays, zapLogger)
		go planner.Start(ctx, 12*time.Hour)
	}

	dlqGC := queue.NewGarbageCollector(jobQueue, time.Hour, 24*time.Hour, zapLogger)
	go func() {
		if err := dlqGC.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
		}
	}()

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}
	zapLogger.Info("worker_started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errChan:
				if !ok {
					return
				}
				zapLogger.Error("queue_error", zap.Error(err))
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			zapLogger.Info("worker_stopped")
			return
		case msg, ok := <-msgChan:
			if !ok {
				zapLogger.Info("message_channel_closed")
				return
			}
			if err := refresher.ProcessJob(ctx, msg); err != nil {
				fields := []zap.Field{zap.Error(err)}
				if job := msg.GetJob(); job != nil {
					fields = append(fields,
						zap.String("job_id", job.ID.String()),
						zap.String("job_type", string(job.Type)))
				}
				zapLogger.Warn("job_processing_failed", fields...)
			}
		}
	}
}
