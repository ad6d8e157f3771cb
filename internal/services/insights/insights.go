// Package insights computes a patient's insights on demand and caches them between
// out-of-band refreshes.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benvon/health-chat/internal/analytics"
	"github.com/benvon/health-chat/internal/cache"
	"github.com/benvon/health-chat/internal/logger"
	"github.com/benvon/health-chat/internal/models"
	"github.com/benvon/health-chat/internal/records"
	"github.com/benvon/health-chat/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	// DefaultWindowDays is the default insight history window
	DefaultWindowDays = 7
	// DefaultTTL is how long a refreshed result is served from cache
	DefaultTTL = 6 * time.Hour
)

// Result is the set of insights computed for one patient and window
type Result struct {
	UserID      uuid.UUID        `json:"user_id"`
	WindowDays  int              `json:"window_days"`
	GeneratedAt time.Time        `json:"generated_at"`
	Insights    []models.Insight `json:"insights"`
	Top         []models.Insight `json:"top"`
}

// Service assembles patient records, runs the analytics engine and caches the outcome
type Service struct {
	assembler  *records.Assembler
	store      cache.Store
	thresholds analytics.Thresholds
	ttl        time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithThresholds overrides the analytics thresholds
func WithThresholds(th analytics.Thresholds) Option {
	return func(s *Service) { s.thresholds = th }
}

// WithTTL sets how long cached results stay fresh
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates an insight service. store may be nil to disable caching.
func NewService(assembler *records.Assembler, store cache.Store, opts ...Option) *Service {
	s := &Service{
		assembler:  assembler,
		store:      store,
		thresholds: analytics.DefaultThresholds(),
		ttl:        DefaultTTL,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CacheKey is the cache key of a user's insights for a window
func CacheKey(userID uuid.UUID, windowDays int) string {
	return fmt.Sprintf("insights:%s:%d", userID, windowDays)
}

// Compute recomputes insights from the record store
func (s *Service) Compute(ctx context.Context, userID uuid.UUID, windowDays int) (*Result, error) {
	pc, err := s.assembler.AssembleWindow(ctx, userID, windowDays)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble patient context: %w", err)
	}
	asOf := s.now()
	report := analytics.Analyze(pc, asOf, s.thresholds)

	all := report.Insights()
	if all == nil {
		all = []models.Insight{}
	}
	top := analytics.SelectTopInsights(all, analytics.DefaultTopInsights)
	if top == nil {
		top = []models.Insight{}
	}
	return &Result{
		UserID:      userID,
		WindowDays:  windowDays,
		GeneratedAt: asOf,
		Insights:    all,
		Top:         top,
	}, nil
}

// Refresh recomputes insights and writes them to the cache
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID, windowDays int) (_ *Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, "insights.refresh", attribute.Int("window_days", windowDays))
	defer func() { telemetry.End(span, err) }()

	result, err := s.Compute(ctx, userID, windowDays)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return result, nil
	}
	body, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal insights: %w", err)
	}
	if err := s.store.Set(ctx, CacheKey(userID, windowDays), body, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to cache insights: %w", err)
	}
	return result, nil
}

// Get serves cached insights while they are fresh and computes them otherwise. The boolean
// reports whether the cached copy was used. A broken cache degrades to computing.
func (s *Service) Get(ctx context.Context, userID uuid.UUID, windowDays int) (*Result, bool, error) {
	if s.store != nil {
		body, ok, err := s.store.Get(ctx, CacheKey(userID, windowDays))
		switch {
		case err != nil:
			s.logger.Warn("insight_cache_read_failed",
				zap.String("user_id", logger.SanitizeUserID(userID.String())),
				zap.Error(err))
		case ok:
			var result Result
			if err := json.Unmarshal(body, &result); err == nil {
				return &result, true, nil
			}
			s.logger.Warn("insight_cache_corrupt", zap.String("user_id", logger.SanitizeUserID(userID.String())))
		}
	}

	result, err := s.Compute(ctx, userID, windowDays)
	if err != nil {
		return nil, false, err
	}
	return result, false, nil
}
