package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/health-chat/internal/logger"
	"github.com/benvon/health-chat/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultActiveWithin is how recently a user must have logged a record to get scheduled
// refreshes
const DefaultActiveWithin = 14 * 24 * time.Hour

// refreshHours are the local hours at which planned refreshes run
var refreshHours = []int{8, 20}

// ActiveUserLister finds users with recent records
type ActiveUserLister interface {
	ListActiveUsers(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

// RefreshPlanner schedules twice-daily insight refreshes for active users, so cached
// insights stay warm for users who log records without chatting
type RefreshPlanner struct {
	jobQueue     Enqueuer
	users        ActiveUserLister
	windowDays   int
	activeWithin time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewRefreshPlanner creates a planner
func NewRefreshPlanner(jobQueue Enqueuer, users ActiveUserLister, windowDays int, log *zap.Logger) *RefreshPlanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &RefreshPlanner{
		jobQueue:     jobQueue,
		users:        users,
		windowDays:   windowDays,
		activeWithin: DefaultActiveWithin,
		logger:       log,
		now:          time.Now,
	}
}

// NextRuns returns the next occurrence of each refresh hour after now
func NextRuns(now time.Time) []time.Time {
	runs := make([]time.Time, 0, len(refreshHours))
	for _, hour := range refreshHours {
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		runs = append(runs, next)
	}
	return runs
}

// ScheduleRefreshJobs enqueues one delayed refresh per active user per upcoming run.
// Failures for one user do not stop the others.
func (p *RefreshPlanner) ScheduleRefreshJobs(ctx context.Context) (int, error) {
	now := p.now()
	users, err := p.users.ListActiveUsers(ctx, now.Add(-p.activeWithin))
	if err != nil {
		return 0, fmt.Errorf("failed to list active users: %w", err)
	}

	runs := NextRuns(now)
	scheduled := 0
	for _, userID := range users {
		for _, at := range runs {
			job := queue.NewInsightRefreshJob(userID, p.windowDays, at.Sub(now))
			if err := p.jobQueue.Enqueue(ctx, job); err != nil {
				p.logger.Warn("planned_refresh_enqueue_failed",
					zap.String("user_id", logger.SanitizeUserID(userID.String())),
					zap.Time("run_at", at),
					zap.Error(err))
				continue
			}
			scheduled++
		}
	}

	p.logger.Info("planned_refresh_jobs",
		zap.Int("user_count", len(users)),
		zap.Int("job_count", scheduled),
		zap.Times("runs", runs))
	return scheduled, nil
}

// Start schedules once immediately and then every interval until ctx is done
func (p *RefreshPlanner) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.ScheduleRefreshJobs(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("refresh_planning_failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
