package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeInsightRefresh recomputes a user's insights and caches them
	JobTypeInsightRefresh JobType = "insight_refresh"
)

const (
	// DefaultMaxRetries is the retry budget of a new job
	DefaultMaxRetries = 3
	// DefaultJobLifetime is how long a refresh job stays useful after it is created
	DefaultJobLifetime = time.Hour

	metadataWindowDays = "window_days"
)

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID      `json:"id"`
	Type       JobType        `json:"type"`
	UserID     uuid.UUID      `json:"user_id"`
	NotBefore  *time.Time     `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter   *time.Time     `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, userID uuid.UUID) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}
}

// NewInsightRefreshJob creates a refresh job for the user's last windowDays of records that
// becomes eligible after delay and expires DefaultJobLifetime after that
func NewInsightRefreshJob(userID uuid.UUID, windowDays int, delay time.Duration) *Job {
	job := NewJob(JobTypeInsightRefresh, userID)
	job.Metadata[metadataWindowDays] = windowDays
	if delay < 0 {
		delay = 0
	}
	notAfter := job.CreatedAt.Add(delay + DefaultJobLifetime)
	job.NotAfter = &notAfter
	if delay > 0 {
		notBefore := job.CreatedAt.Add(delay)
		job.NotBefore = &notBefore
	}
	return job
}

// Retry returns a copy of the job scheduled to run again after delay, with its retry count
// incremented
func (j *Job) Retry(delay time.Duration) *Job {
	next := *j
	next.Metadata = make(map[string]any, len(j.Metadata))
	for k, v := range j.Metadata {
		next.Metadata[k] = v
	}
	next.RetryCount = j.RetryCount + 1
	notBefore := time.Now().Add(delay)
	next.NotBefore = &notBefore
	if j.NotAfter != nil && j.NotAfter.Before(notBefore) {
		notAfter := notBefore.Add(DefaultJobLifetime)
		next.NotAfter = &notAfter
	}
	return &next
}

// WindowDays returns the window stored in the job metadata, or fallback when absent.
// Metadata decoded from JSON holds numbers as float64.
func (j *Job) WindowDays(fallback int) int {
	switch v := j.Metadata[metadataWindowDays].(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return fallback
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
