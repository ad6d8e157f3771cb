package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benvon/health-chat/internal/models"
	"github.com/google/uuid"
)

// MemoryAccessor is an in-process Accessor used by the CLI's offline mode and by tests
type MemoryAccessor struct {
	mu          sync.RWMutex
	profiles    map[uuid.UUID]models.Profile
	conditions  map[uuid.UUID][]models.Condition
	medications map[uuid.UUID][]models.Medication
	records     map[uuid.UUID]models.RecordSet
	now         func() time.Time
}

// NewMemoryAccessor creates an empty accessor
func NewMemoryAccessor() *MemoryAccessor {
	return &MemoryAccessor{
		profiles:    make(map[uuid.UUID]models.Profile),
		conditions:  make(map[uuid.UUID][]models.Condition),
		medications: make(map[uuid.UUID][]models.Medication),
		records:     make(map[uuid.UUID]models.RecordSet),
		now:         time.Now,
	}
}

// SetClock overrides the time used to compute windows
func (m *MemoryAccessor) SetClock(now func() time.Time) {
	m.now = now
}

// PutPatient stores a full patient snapshot
func (m *MemoryAccessor) PutPatient(userID uuid.UUID, profile models.Profile, conditions []models.Condition, medications []models.Medication, set models.RecordSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile.UserID = userID
	m.profiles[userID] = profile
	m.conditions[userID] = conditions
	m.medications[userID] = medications
	m.records[userID] = set
}

// FetchRecentRecords implements Accessor
func (m *MemoryAccessor) FetchRecentRecords(_ context.Context, userID uuid.UUID, kinds []models.RecordKind, windowDays int) (models.RecordSet, error) {
	m.mu.RLock()
	set := m.records[userID]
	m.mu.RUnlock()

	since := m.now().AddDate(0, 0, -windowDays)
	out := models.RecordSet{
		Glucose:    []models.GlucoseReading{},
		Weight:     []models.WeightLog{},
		Activity:   []models.ActivityLog{},
		Medication: []models.MedicationLog{},
	}
	for _, kind := range kinds {
		switch kind {
		case models.RecordKindGlucose:
			for _, r := range set.Glucose {
				if !r.Timestamp.Before(since) {
					out.Glucose = append(out.Glucose, r)
				}
			}
			sort.SliceStable(out.Glucose, func(i, j int) bool { return out.Glucose[i].Timestamp.Before(out.Glucose[j].Timestamp) })
		case models.RecordKindWeight:
			for _, r := range set.Weight {
				if !r.Timestamp.Before(since) {
					out.Weight = append(out.Weight, r)
				}
			}
			sort.SliceStable(out.Weight, func(i, j int) bool { return out.Weight[i].Timestamp.Before(out.Weight[j].Timestamp) })
		case models.RecordKindActivity:
			for _, r := range set.Activity {
				if !r.Timestamp.Before(since) {
					out.Activity = append(out.Activity, r)
				}
			}
			sort.SliceStable(out.Activity, func(i, j int) bool { return out.Activity[i].Timestamp.Before(out.Activity[j].Timestamp) })
		case models.RecordKindMedication:
			for _, r := range set.Medication {
				if !r.Timestamp.Before(since) {
					out.Medication = append(out.Medication, r)
				}
			}
			sort.SliceStable(out.Medication, func(i, j int) bool { return out.Medication[i].Timestamp.Before(out.Medication[j].Timestamp) })
		}
	}
	return out, nil
}

// FetchProfile implements Accessor
func (m *MemoryAccessor) FetchProfile(_ context.Context, userID uuid.UUID) (models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[userID]; ok {
		return p, nil
	}
	return models.Profile{UserID: userID}, nil
}

// FetchConditions implements Accessor
func (m *MemoryAccessor) FetchConditions(_ context.Context, userID uuid.UUID) ([]models.Condition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Condition{}, m.conditions[userID]...), nil
}

// FetchMedications implements Accessor
func (m *MemoryAccessor) FetchMedications(_ context.Context, userID uuid.UUID) ([]models.Medication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Medication{}, m.medications[userID]...), nil
}

var _ Accessor = (*MemoryAccessor)(nil)
