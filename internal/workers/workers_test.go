package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benvon/health-chat/internal/queue"
	"github.com/benvon/health-chat/internal/services/insights"
	"github.com/google/uuid"
)

type mockMessage struct {
	job     *queue.Job
	acked   bool
	nacked  bool
	requeue bool
}

func (m *mockMessage) Ack() error { m.acked = true; return nil }

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}

func (m *mockMessage) GetJob() *queue.Job { return m.job }

var _ queue.MessageInterface = (*mockMessage)(nil)

type mockComputer struct {
	err     error
	gotUser uuid.UUID
	gotDays int
	calls   int
}

func (m *mockComputer) Refresh(_ context.Context, userID uuid.UUID, windowDays int) (*insights.Result, error) {
	m.calls++
	m.gotUser = userID
	m.gotDays = windowDays
	if m.err != nil {
		return nil, m.err
	}
	return &insights.Result{UserID: userID, WindowDays: windowDays}, nil
}

type mockQueue struct {
	mu   sync.Mutex
	err  error
	jobs []*queue.Job
}

func (m *mockQueue) Enqueue(_ context.Context, job *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func TestInsightRefresher_ProcessJob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		job         func() *queue.Job
		refreshErr  error
		enqueueErr  error
		wantErr     bool
		wantAck     bool
		wantNack    bool
		wantRequeue bool
		wantRetries int
		wantCalls   int
	}{
		{
			name:      "success",
			job:       func() *queue.Job { return queue.NewInsightRefreshJob(uuid.New(), 14, 0) },
			wantAck:   true,
			wantCalls: 1,
		},
		{
			name: "not yet due",
			job: func() *queue.Job {
				return queue.NewInsightRefreshJob(uuid.New(), 14, time.Hour)
			},
			wantNack:    true,
			wantRequeue: true,
		},
		{
			name: "expired",
			job: func() *queue.Job {
				job := queue.NewInsightRefreshJob(uuid.New(), 14, 0)
				past := time.Now().Add(-time.Minute)
				job.NotAfter = &past
				return job
			},
			wantAck: true,
		},
		{
			name:        "failure schedules delayed retry",
			job:         func() *queue.Job { return queue.NewInsightRefreshJob(uuid.New(), 14, 0) },
			refreshErr:  errors.New("connection reset"),
			wantErr:     true,
			wantAck:     true,
			wantRetries: 1,
			wantCalls:   1,
		},
		{
			name:        "failure with broken queue requeues",
			job:         func() *queue.Job { return queue.NewInsightRefreshJob(uuid.New(), 14, 0) },
			refreshErr:  errors.New("connection reset"),
			enqueueErr:  errors.New("channel closed"),
			wantErr:     true,
			wantNack:    true,
			wantRequeue: true,
			wantCalls:   1,
		},
		{
			name: "retries exhausted",
			job: func() *queue.Job {
				job := queue.NewInsightRefreshJob(uuid.New(), 14, 0)
				job.RetryCount = job.MaxRetries
				return job
			},
			refreshErr: errors.New("connection reset"),
			wantErr:    true,
			wantNack:   true,
			wantCalls:  1,
		},
		{
			name: "unknown type",
			job: func() *queue.Job {
				return queue.NewJob(queue.JobType("task_analysis"), uuid.New())
			},
			wantErr:  true,
			wantNack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			computer := &mockComputer{err: tt.refreshErr}
			jobQueue := &mockQueue{err: tt.enqueueErr}
			refresher := NewInsightRefresher(computer, jobQueue, 7, nil)
			msg := &mockMessage{job: tt.job()}

			err := refresher.ProcessJob(context.Background(), msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if msg.acked != tt.wantAck {
				t.Errorf("Expected acked=%v, got %v", tt.wantAck, msg.acked)
			}
			if msg.nacked != tt.wantNack {
				t.Errorf("Expected nacked=%v, got %v", tt.wantNack, msg.nacked)
			}
			if msg.nacked && msg.requeue != tt.wantRequeue {
				t.Errorf("Expected requeue=%v, got %v", tt.wantRequeue, msg.requeue)
			}
			if len(jobQueue.jobs) != tt.wantRetries {
				t.Errorf("Expected %d re-enqueued jobs, got %d", tt.wantRetries, len(jobQueue.jobs))
			}
			if computer.calls != tt.wantCalls {
				t.Errorf("Expected %d refresh calls, got %d", tt.wantCalls, computer.calls)
			}
			if tt.wantCalls > 0 && computer.gotDays != 14 {
				t.Errorf("Expected window from job metadata, got %d", computer.gotDays)
			}
			if tt.wantRetries > 0 {
				retry := jobQueue.jobs[0]
				if retry.ID != msg.job.ID || retry.RetryCount != 1 || retry.NotBefore == nil {
					t.Errorf("Expected delayed retry of the same job, got %+v", retry)
				}
			}
		})
	}
}

func TestInsightRefresher_DefaultWindow(t *testing.T) {
	t.Parallel()

	computer := &mockComputer{}
	refresher := NewInsightRefresher(computer, nil, 30, nil)
	job := queue.NewJob(queue.JobTypeInsightRefresh, uuid.New())

	if err := refresher.ProcessJob(context.Background(), &mockMessage{job: job}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if computer.gotDays != 30 {
		t.Errorf("Expected fallback window 30, got %d", computer.gotDays)
	}
	if computer.gotUser != job.UserID {
		t.Errorf("Expected user %s, got %s", job.UserID, computer.gotUser)
	}
}

func TestInsightRefresher_ShutdownRequeues(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	jobQueue := &mockQueue{}
	refresher := NewInsightRefresher(&mockComputer{err: context.Canceled}, jobQueue, 7, nil)
	msg := &mockMessage{job: queue.NewInsightRefreshJob(uuid.New(), 7, 0)}

	if err := refresher.ProcessJob(ctx, msg); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if !msg.nacked || !msg.requeue {
		t.Error("Expected job handed back to the queue")
	}
	if msg.job.RetryCount != 0 || len(jobQueue.jobs) != 0 {
		t.Error("Expected shutdown not to consume retry budget")
	}
}

type mockLister struct {
	users []uuid.UUID
	err   error
	since time.Time
}

func (m *mockLister) ListActiveUsers(_ context.Context, since time.Time) ([]uuid.UUID, error) {
	m.since = since
	return m.users, m.err
}

func TestNextRuns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		now  time.Time
		want []time.Time
	}{
		{
			name: "early morning",
			now:  time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC),
			want: []time.Time{time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC), time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)},
		},
		{
			name: "afternoon",
			now:  time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC),
			want: []time.Time{time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC), time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)},
		},
		{
			name: "exactly on the hour",
			now:  time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC),
			want: []time.Time{time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 20, 0, 0, 0, time.UTC)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NextRuns(tt.now)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d runs, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if !got[i].Equal(tt.want[i]) {
					t.Errorf("Run %d: expected %v, got %v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestRefreshPlanner_ScheduleRefreshJobs(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)
	lister := &mockLister{users: []uuid.UUID{uuid.New(), uuid.New()}}
	jobQueue := &mockQueue{}
	planner := NewRefreshPlanner(jobQueue, lister, 7, nil)
	planner.now = func() time.Time { return now }

	scheduled, err := planner.ScheduleRefreshJobs(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if scheduled != 4 || len(jobQueue.jobs) != 4 {
		t.Errorf("Expected 4 jobs, got %d (%d enqueued)", scheduled, len(jobQueue.jobs))
	}
	if !lister.since.Equal(now.Add(-DefaultActiveWithin)) {
		t.Errorf("Expected activity cutoff %v, got %v", now.Add(-DefaultActiveWithin), lister.since)
	}
	for _, job := range jobQueue.jobs {
		if job.Type != queue.JobTypeInsightRefresh || job.WindowDays(0) != 7 {
			t.Errorf("Expected 7 day refresh job, got %+v", job)
		}
		if job.NotBefore == nil || !job.NotAfter.After(*job.NotBefore) {
			t.Errorf("Expected delayed job expiring after it becomes due, got %v/%v", job.NotBefore, job.NotAfter)
		}
	}

	lister.err = errors.New("db down")
	if _, err := planner.ScheduleRefreshJobs(context.Background()); err == nil {
		t.Error("Expected lister failure to be returned")
	}

	lister.err = nil
	failing := NewRefreshPlanner(&mockQueue{err: errors.New("channel closed")}, lister, 7, nil)
	scheduled, err = failing.ScheduleRefreshJobs(context.Background())
	if err != nil || scheduled != 0 {
		t.Errorf("Expected per-user failures to be skipped, got %d, %v", scheduled, err)
	}
}
