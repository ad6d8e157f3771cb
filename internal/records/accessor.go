// Package records defines how the chat pipeline reads a patient's health logs and
// assembles them into a per-turn PatientContext.
package records

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/health-chat/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWindowDays is the history window used for conversational turns
const DefaultWindowDays = 30

// Accessor reads a user's records. Users with no data of a kind get empty slices,
// never an error.
type Accessor interface {
	// FetchRecentRecords returns the records of the requested kinds logged in the last
	// windowDays days, each ordered by timestamp
	FetchRecentRecords(ctx context.Context, userID uuid.UUID, kinds []models.RecordKind, windowDays int) (models.RecordSet, error)
	FetchProfile(ctx context.Context, userID uuid.UUID) (models.Profile, error)
	FetchConditions(ctx context.Context, userID uuid.UUID) ([]models.Condition, error)
	FetchMedications(ctx context.Context, userID uuid.UUID) ([]models.Medication, error)
}

// Assembler builds PatientContexts from an Accessor
type Assembler struct {
	accessor   Accessor
	windowDays int
	now        func() time.Time
	logger     *zap.Logger
}

// AssemblerOption configures an Assembler
type AssemblerOption func(*Assembler)

// WithWindowDays overrides the history window
func WithWindowDays(days int) AssemblerOption {
	return func(a *Assembler) {
		if days > 0 {
			a.windowDays = days
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) {
		a.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) AssemblerOption {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAssembler creates an assembler reading from accessor
func NewAssembler(accessor Accessor, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		accessor:   accessor,
		windowDays: DefaultWindowDays,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WindowDays returns the configured history window
func (a *Assembler) WindowDays() int {
	return a.windowDays
}

// Assemble fetches the profile, conditions, medications and recent records of userID
// concurrently and returns them as a validated PatientContext
func (a *Assembler) Assemble(ctx context.Context, userID uuid.UUID) (*models.PatientContext, error) {
	return a.AssembleWindow(ctx, userID, a.windowDays)
}

// AssembleWindow is Assemble with an explicit history window
func (a *Assembler) AssembleWindow(ctx context.Context, userID uuid.UUID, windowDays int) (*models.PatientContext, error) {
	if windowDays < 0 {
		return nil, fmt.Errorf("invalid window of %d days", windowDays)
	}

	pc := &models.PatientContext{
		UserID:      userID,
		WindowDays:  windowDays,
		AssembledAt: a.now(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, err := a.accessor.FetchProfile(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to fetch profile: %w", err)
		}
		pc.Profile = profile
		return nil
	})
	g.Go(func() error {
		conditions, err := a.accessor.FetchConditions(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to fetch conditions: %w", err)
		}
		pc.Conditions = conditions
		return nil
	})
	g.Go(func() error {
		medications, err := a.accessor.FetchMedications(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to fetch medications: %w", err)
		}
		pc.Medications = medications
		return nil
	})
	g.Go(func() error {
		set, err := a.accessor.FetchRecentRecords(gctx, userID, models.AllRecordKinds, windowDays)
		if err != nil {
			return fmt.Errorf("failed to fetch records: %w", err)
		}
		pc.Records = set
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := pc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid patient context: %w", err)
	}

	a.logger.Debug("patient_context_assembled",
		zap.String("user_id", userID.String()),
		zap.Int("window_days", windowDays),
		zap.Int("glucose_readings", len(pc.Records.Glucose)),
		zap.Int("weight_logs", len(pc.Records.Weight)),
		zap.Int("activity_logs", len(pc.Records.Activity)),
		zap.Int("medication_logs", len(pc.Records.Medication)),
	)
	return pc, nil
}
