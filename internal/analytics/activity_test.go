package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/benvon/health-chat/internal/models"
	"github.com/google/uuid"
)

func TestActivityCorrelation(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	readings := dailyReadings(110, 150, 120, 160)
	activities := []models.ActivityLog{
		{UserID: userID, Timestamp: testStart.Add(2 * time.Hour), Value: 30, Intensity: models.ActivityIntensityMedium, Type: "walk"},
		{UserID: userID, Timestamp: testStart.AddDate(0, 0, 2).Add(5 * time.Hour), Value: 45, Intensity: models.ActivityIntensityHigh, Type: "run"},
	}

	c, ok := ActivityCorrelation(readings, activities, time.UTC).Get()
	if !ok {
		t.Fatal("Expected correlation to be computed")
	}
	if c.ActiveDays != 2 || c.InactiveDays != 2 {
		t.Errorf("Expected 2 active and 2 inactive days, got %d and %d", c.ActiveDays, c.InactiveDays)
	}
	if c.ActiveMean != 115 || c.InactiveMean != 155 {
		t.Errorf("Expected means 115 and 155, got %f and %f", c.ActiveMean, c.InactiveMean)
	}
	if c.Difference != -40 {
		t.Errorf("Expected difference -40, got %f", c.Difference)
	}
}

func TestActivityCorrelation_InsufficientContrast(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	readings := dailyReadings(110, 150)

	tests := []struct {
		name       string
		activities []models.ActivityLog
	}{
		{name: "no activity", activities: nil},
		{
			name: "active every day",
			activities: []models.ActivityLog{
				{UserID: userID, Timestamp: testStart, Value: 20},
				{UserID: userID, Timestamp: testStart.AddDate(0, 0, 1), Value: 20},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := ActivityCorrelation(readings, tt.activities, time.UTC)
			if m.Ok() {
				t.Fatal("Expected insufficient contrast")
			}
		})
	}
}

func TestWeeklyActivity(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	activities := []models.ActivityLog{
		{UserID: userID, Timestamp: testStart, Value: 100},
		{UserID: userID, Timestamp: testStart.AddDate(0, 0, 3), Value: 100},
		{UserID: userID, Timestamp: testStart.AddDate(0, 0, 9), Value: 80},
	}

	v, ok := WeeklyActivity(activities, 14).Get()
	if !ok {
		t.Fatal("Expected activity volume")
	}
	if v.TotalMinutes != 280 || v.WeeklyMinutes != 140 {
		t.Errorf("Expected 280 total and 140 weekly, got %f and %f", v.TotalMinutes, v.WeeklyMinutes)
	}
	if v.MeetsGuideline {
		t.Error("Expected 140 minutes per week to miss the guideline")
	}

	defer func() {
		if recover() == nil {
			t.Error("Expected panic for negative duration")
		}
	}()
	WeeklyActivity([]models.ActivityLog{{UserID: userID, Value: -5}}, 7)
}

func TestWeightConversion_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, x := range []float64{0, 0.5, 1, 57.3, 80, 154.32, 300, 1e6} {
		if got := KgToLbs(LbsToKg(x)); math.Abs(got-x) > 1e-9*math.Max(1, x) {
			t.Errorf("Expected kg_to_lbs(lbs_to_kg(%f)) == %f, got %f", x, x, got)
		}
		if got := LbsToKg(KgToLbs(x)); math.Abs(got-x) > 1e-9*math.Max(1, x) {
			t.Errorf("Expected lbs_to_kg(kg_to_lbs(%f)) == %f, got %f", x, x, got)
		}
	}
	if KgToLbs(1) != 2.20462 {
		t.Errorf("Expected 1 kg to be 2.20462 lbs, got %f", KgToLbs(1))
	}
}

func TestWeightTrend(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	logs := []models.WeightLog{
		{UserID: userID, Timestamp: testStart.AddDate(0, 0, 6), Value: 176.3696, Unit: models.WeightUnitLbs},
		{UserID: userID, Timestamp: testStart, Value: 82, Unit: models.WeightUnitKg},
	}

	w, ok := WeightTrend(logs, models.WeightUnitKg).Get()
	if !ok {
		t.Fatal("Expected weight trend")
	}
	if math.Abs(w.First-82) > 1e-9 || math.Abs(w.Last-80) > 1e-6 {
		t.Errorf("Expected 82 -> 80 kg, got %f -> %f", w.First, w.Last)
	}
	if w.Direction != WeightLost {
		t.Errorf("Expected lost, got %s", w.Direction)
	}

	if WeightTrend(logs[:1], models.WeightUnitKg).Ok() {
		t.Error("Expected a single log to be insufficient")
	}
}

func TestConvertWeight_UnknownUnitPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("Expected panic for unknown unit")
		}
	}()
	ConvertWeight(10, "stone", models.WeightUnitKg)
}

func TestBMI(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	height := 180.0
	logs := []models.WeightLog{{UserID: userID, Timestamp: testStart, Value: 90, Unit: models.WeightUnitKg}}

	b, ok := BMI(logs, &height).Get()
	if !ok {
		t.Fatal("Expected BMI")
	}
	if math.Abs(b.Value-27.78) > 0.01 || b.Category != "overweight" {
		t.Errorf("Expected BMI 27.78 overweight, got %f %s", b.Value, b.Category)
	}
	if BMI(logs, nil).Ok() {
		t.Error("Expected missing height to be insufficient")
	}
}
