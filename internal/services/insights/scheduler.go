package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/health-chat/internal/cache"
	"github.com/benvon/health-chat/internal/queue"
	"github.com/google/uuid"
)

// DefaultDebounce is the minimum spacing between refresh jobs for one user
const DefaultDebounce = 2 * time.Minute

// Enqueuer accepts jobs
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// Scheduler enqueues at most one insight refresh per user per debounce period. The job is
// delayed by the same period so a burst of turns collapses into one recomputation.
type Scheduler struct {
	store      cache.Store
	queue      Enqueuer
	debounce   time.Duration
	windowDays int
}

// NewScheduler creates a refresh scheduler
func NewScheduler(store cache.Store, q Enqueuer, debounce time.Duration, windowDays int) *Scheduler {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Scheduler{store: store, queue: q, debounce: debounce, windowDays: windowDays}
}

func debounceKey(userID uuid.UUID) string {
	return "insight_refresh:" + userID.String()
}

// Schedule enqueues a refresh for userID unless one is already pending. It reports whether a
// job was enqueued.
func (s *Scheduler) Schedule(ctx context.Context, userID uuid.UUID) (bool, error) {
	key := debounceKey(userID)
	_, pending, err := s.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read refresh marker: %w", err)
	}
	if pending {
		return false, nil
	}
	if err := s.store.Set(ctx, key, []byte("1"), s.debounce); err != nil {
		return false, fmt.Errorf("failed to set refresh marker: %w", err)
	}

	job := queue.NewInsightRefreshJob(userID, s.windowDays, s.debounce)
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// let the next turn try again
		_ = s.store.Delete(ctx, key)
		return false, fmt.Errorf("failed to enqueue insight refresh: %w", err)
	}
	return true, nil
}
