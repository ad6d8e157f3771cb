package models

import (
	"time"

	"github.com/google/uuid"
)

// RecordKind identifies one time-series variant
type RecordKind string

const (
	RecordKindGlucose    RecordKind = "glucose"
	RecordKindWeight     RecordKind = "weight"
	RecordKindActivity   RecordKind = "activity"
	RecordKindMedication RecordKind = "medication"
)

// AllRecordKinds lists every record kind in a stable order
var AllRecordKinds = []RecordKind{
	RecordKindGlucose,
	RecordKindWeight,
	RecordKindActivity,
	RecordKindMedication,
}

// GlucoseTiming tags when a glucose reading was taken relative to the patient's day
type GlucoseTiming string

const (
	GlucoseTimingJustWokeUp GlucoseTiming = "just_woke_up"
	GlucoseTimingBeforeMeal GlucoseTiming = "before_meal"
	GlucoseTimingAfterMeal  GlucoseTiming = "after_meal"
	GlucoseTimingBedtime    GlucoseTiming = "bedtime"
)

// WeightUnit is the unit a weight log was recorded in
type WeightUnit string

const (
	WeightUnitKg  WeightUnit = "kg"
	WeightUnitLbs WeightUnit = "lbs"
)

// ActivityIntensity is the self-reported effort of an activity
type ActivityIntensity string

const (
	ActivityIntensityLow    ActivityIntensity = "low"
	ActivityIntensityMedium ActivityIntensity = "medium"
	ActivityIntensityHigh   ActivityIntensity = "high"
)

// GlucoseReading is a single blood glucose measurement in mg/dL
type GlucoseReading struct {
	UserID    uuid.UUID     `json:"user_id"`
	Timestamp time.Time     `json:"timestamp"`
	Value     float64       `json:"value"`
	Timing    GlucoseTiming `json:"timing,omitempty"`
}

// WeightLog is a single weight measurement in the unit it was logged in
type WeightLog struct {
	UserID    uuid.UUID  `json:"user_id"`
	Timestamp time.Time  `json:"timestamp"`
	Value     float64    `json:"value"`
	Unit      WeightUnit `json:"unit"`
}

// ActivityLog is a single bout of physical activity; Value is the duration in minutes
type ActivityLog struct {
	UserID    uuid.UUID         `json:"user_id"`
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Intensity ActivityIntensity `json:"intensity,omitempty"`
	Type      string            `json:"type,omitempty"`
}

// MedicationLog records one taken dose of a medication
type MedicationLog struct {
	UserID     uuid.UUID `json:"user_id"`
	Timestamp  time.Time `json:"timestamp"`
	Medication string    `json:"medication"`
	Dose       string    `json:"dose,omitempty"`
}

// RecordSet groups the time series of one user, each ordered by timestamp
type RecordSet struct {
	Glucose    []GlucoseReading `json:"glucose"`
	Weight     []WeightLog      `json:"weight"`
	Activity   []ActivityLog    `json:"activity"`
	Medication []MedicationLog  `json:"medication"`
}

// Empty reports whether the set holds no records of any kind
func (s RecordSet) Empty() bool {
	return len(s.Glucose) == 0 && len(s.Weight) == 0 && len(s.Activity) == 0 && len(s.Medication) == 0
}

// Owners returns every distinct user id found across the set
func (s RecordSet) Owners() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var owners []uuid.UUID
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		owners = append(owners, id)
	}
	for _, r := range s.Glucose {
		add(r.UserID)
	}
	for _, r := range s.Weight {
		add(r.UserID)
	}
	for _, r := range s.Activity {
		add(r.UserID)
	}
	for _, r := range s.Medication {
		add(r.UserID)
	}
	return owners
}
