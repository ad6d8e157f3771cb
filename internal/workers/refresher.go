// Package workers holds the queue consumers run by cmd/worker.
package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/health-chat/internal/logger"
	"github.com/benvon/health-chat/internal/queue"
	"github.com/benvon/health-chat/internal/services/ai"
	"github.com/benvon/health-chat/internal/services/insights"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnknownJobType is returned for jobs this worker cannot handle. Such jobs are
// dead-lettered.
var ErrUnknownJobType = errors.New("unknown job type")

// InsightComputer recomputes and caches a user's insights
type InsightComputer interface {
	Refresh(ctx context.Context, userID uuid.UUID, windowDays int) (*insights.Result, error)
}

// Enqueuer re-publishes jobs for delayed retry
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// InsightRefresher processes insight refresh jobs
type InsightRefresher struct {
	insights    InsightComputer
	jobQueue    Enqueuer
	defaultDays int
	logger      *zap.Logger
}

// NewInsightRefresher creates a refresher. jobQueue may be nil, in which case failed jobs
// are requeued immediately instead of with a delay.
func NewInsightRefresher(computer InsightComputer, jobQueue Enqueuer, defaultDays int, log *zap.Logger) *InsightRefresher {
	if log == nil {
		log = zap.NewNop()
	}
	if defaultDays <= 0 {
		defaultDays = insights.DefaultWindowDays
	}
	return &InsightRefresher{
		insights:    computer,
		jobQueue:    jobQueue,
		defaultDays: defaultDays,
		logger:      log,
	}
}

// ProcessJob handles one delivery and always settles it with Ack or Nack
func (r *InsightRefresher) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()
	if job == nil {
		if nackErr := msg.Nack(false); nackErr != nil {
			r.logger.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("delivery carried no job")
	}
	log := r.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.String("user_id", logger.SanitizeUserID(job.UserID.String())),
	)

	if job.IsExpired() {
		// A newer refresh supersedes an expired one
		log.Info("insight_refresh_expired")
		return msg.Ack()
	}
	if !job.ShouldProcess() {
		log.Debug("job_not_due", zap.Timep("not_before", job.NotBefore))
		return msg.Nack(true)
	}

	switch job.Type {
	case queue.JobTypeInsightRefresh:
		days := job.WindowDays(r.defaultDays)
		result, err := r.insights.Refresh(ctx, job.UserID, days)
		if err != nil {
			return r.handleJobError(ctx, msg, job, err, log)
		}
		log.Info("insight_refresh_completed",
			zap.Int("window_days", days),
			zap.Int("insight_count", len(result.Insights)))
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil {
			log.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
	}
}

// handleJobError retries with backoff while the job has budget left and dead-letters it
// afterwards
func (r *InsightRefresher) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error, log *zap.Logger) error {
	if ctx.Err() != nil {
		// Shutting down: hand the job back untouched
		if nackErr := msg.Nack(true); nackErr != nil {
			log.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return ctx.Err()
	}

	if !job.CanRetry() {
		log.Error("insight_refresh_dead_lettered",
			zap.Int("retry_count", job.RetryCount),
			zap.String("error", logger.SanitizeError(err)))
		if nackErr := msg.Nack(false); nackErr != nil {
			log.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (max retries): %w", err)
	}

	delay := ai.GetRetryDelay(err, job.RetryCount)
	if r.jobQueue != nil {
		retry := job.Retry(delay)
		enqueueErr := r.jobQueue.Enqueue(ctx, retry)
		if enqueueErr == nil {
			log.Warn("insight_refresh_retry_scheduled",
				zap.Int("attempt", retry.RetryCount),
				zap.Duration("delay", delay),
				zap.String("error", logger.SanitizeError(err)))
			if ackErr := msg.Ack(); ackErr != nil {
				return fmt.Errorf("failed to ack job after re-enqueue: %w", ackErr)
			}
			return fmt.Errorf("job failed (retry scheduled): %w", err)
		}
		log.Warn("job_reenqueue_failed", zap.Error(enqueueErr))
	}

	job.IncrementRetry()
	log.Warn("insight_refresh_requeued",
		zap.Int("attempt", job.RetryCount),
		zap.String("error", logger.SanitizeError(err)))
	if nackErr := msg.Nack(true); nackErr != nil {
		log.Warn("job_nack_failed", zap.Error(nackErr))
	}
	return fmt.Errorf("job failed (will retry): %w", err)
}
