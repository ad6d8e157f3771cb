package insights

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benvon/health-chat/internal/cache"
	"github.com/benvon/health-chat/internal/models"
	"github.com/benvon/health-chat/internal/queue"
	"github.com/benvon/health-chat/internal/records"
	"github.com/google/uuid"
)

var testNow = time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store cache.Store) (*Service, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	accessor := records.NewMemoryAccessor()
	accessor.SetClock(func() time.Time { return testNow })

	var readings []models.GlucoseReading
	for i, v := range []float64{90, 95, 100, 180, 190, 200} {
		readings = append(readings, models.GlucoseReading{
			UserID:    userID,
			Timestamp: testNow.AddDate(0, 0, i-5).Add(-4 * time.Hour),
			Value:     v,
		})
	}
	accessor.PutPatient(userID, models.Profile{}, nil, nil, models.RecordSet{Glucose: readings})

	assembler := records.NewAssembler(accessor, records.WithClock(func() time.Time { return testNow }))
	return NewService(assembler, store, WithClock(func() time.Time { return testNow })), userID
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (failingStore) Delete(context.Context, string) error { return nil }

func TestService_Compute(t *testing.T) {
	t.Parallel()

	svc, userID := newTestService(t, nil)
	result, err := svc.Compute(context.Background(), userID, 7)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.UserID != userID || result.WindowDays != 7 {
		t.Errorf("Expected result for %s over 7 days, got %s over %d", userID, result.UserID, result.WindowDays)
	}
	if len(result.Insights) == 0 {
		t.Fatal("Expected insights")
	}
	if len(result.Top) != 3 {
		t.Errorf("Expected 3 top insights, got %d", len(result.Top))
	}
	if !result.GeneratedAt.Equal(testNow) {
		t.Errorf("Expected generated at %v, got %v", testNow, result.GeneratedAt)
	}
}

func TestService_ComputeWithoutRecords(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil)
	result, err := svc.Compute(context.Background(), uuid.New(), 7)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Insights == nil || result.Top == nil {
		t.Error("Expected empty, non-nil insight lists")
	}
	body, _ := json.Marshal(result)
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Expected valid JSON, got %v", err)
	}
	if _, ok := decoded["insights"].([]any); !ok {
		t.Errorf("Expected insights to encode as an array, got %s", body)
	}
}

func TestService_RefreshThenGetServesCache(t *testing.T) {
	t.Parallel()

	store := cache.NewMemory()
	svc, userID := newTestService(t, store)
	ctx := context.Background()

	if _, cached, err := svc.Get(ctx, userID, 7); err != nil || cached {
		t.Fatalf("Expected computed result before refresh, got cached=%v err=%v", cached, err)
	}

	refreshed, err := svc.Refresh(ctx, userID, 7)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	got, cached, err := svc.Get(ctx, userID, 7)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !cached {
		t.Error("Expected cached result after refresh")
	}
	if len(got.Insights) != len(refreshed.Insights) {
		t.Errorf("Expected %d cached insights, got %d", len(refreshed.Insights), len(got.Insights))
	}

	if _, cached, _ := svc.Get(ctx, userID, 30); cached {
		t.Error("Expected a different window to miss the cache")
	}
}

func TestService_GetWithBrokenCache(t *testing.T) {
	t.Parallel()

	svc, userID := newTestService(t, failingStore{})
	result, cached, err := svc.Get(context.Background(), userID, 7)
	if err != nil {
		t.Fatalf("Expected cache failure to degrade to computing, got %v", err)
	}
	if cached || len(result.Insights) == 0 {
		t.Errorf("Expected computed insights, got cached=%v insights=%d", cached, len(result.Insights))
	}

	if _, err := svc.Refresh(context.Background(), userID, 7); err == nil {
		t.Error("Expected refresh to report the cache write failure")
	}
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []*queue.Job
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func TestScheduler_Debounces(t *testing.T) {
	t.Parallel()

	q := &recordingQueue{}
	s := NewScheduler(cache.NewMemory(), q, time.Minute, 14)
	userID := uuid.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		enqueued, err := s.Schedule(ctx, userID)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if enqueued != (i == 0) {
			t.Errorf("Expected only the first schedule to enqueue, call %d enqueued=%v", i, enqueued)
		}
	}
	if _, err := s.Schedule(ctx, uuid.New()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(q.jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(q.jobs))
	}
	job := q.jobs[0]
	if job.Type != queue.JobTypeInsightRefresh || job.UserID != userID {
		t.Errorf("Expected insight refresh for %s, got %s for %s", userID, job.Type, job.UserID)
	}
	if job.WindowDays(0) != 14 {
		t.Errorf("Expected window of 14 days, got %d", job.WindowDays(0))
	}
	if job.NotBefore == nil || job.NotBefore.Sub(job.CreatedAt) != time.Minute {
		t.Errorf("Expected job delayed by the debounce period, got %v", job.NotBefore)
	}
}

func TestScheduler_EnqueueFailureClearsMarker(t *testing.T) {
	t.Parallel()

	q := &recordingQueue{err: errors.New("broker down")}
	s := NewScheduler(cache.NewMemory(), q, time.Minute, 7)
	userID := uuid.New()

	if _, err := s.Schedule(context.Background(), userID); err == nil {
		t.Fatal("Expected enqueue error")
	}
	q.err = nil
	enqueued, err := s.Schedule(context.Background(), userID)
	if err != nil || !enqueued {
		t.Errorf("Expected retry to enqueue, got enqueued=%v err=%v", enqueued, err)
	}
}
