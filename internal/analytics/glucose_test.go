package analytics

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/benvon/health-chat/internal/models"
	"github.com/google/uuid"
)

var testStart = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func dailyReadings(values ...float64) []models.GlucoseReading {
	userID := uuid.New()
	readings := make([]models.GlucoseReading, len(values))
	for i, v := range values {
		readings[i] = models.GlucoseReading{
			UserID:    userID,
			Timestamp: testStart.AddDate(0, 0, i),
			Value:     v,
		}
	}
	return readings
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestTimeInRange_Scenario(t *testing.T) {
	t.Parallel()

	readings := dailyReadings(90, 95, 100, 180, 190, 200)
	m := TimeInRange(readings, NewBand(70, 180), 4)
	tir, ok := m.Get()
	if !ok {
		t.Fatalf("Expected time in range to be computed, got reason %q", m.Reason())
	}
	if !approxEqual(tir.InRange, 4.0/6.0, 1e-9) {
		t.Errorf("Expected in range 4/6, got %f", tir.InRange)
	}
	if !approxEqual(tir.InRange*100, 66.7, 0.05) {
		t.Errorf("Expected 66.7%%, got %.2f%%", tir.InRange*100)
	}
	if !approxEqual(tir.Above, 2.0/6.0, 1e-9) {
		t.Errorf("Expected above 2/6, got %f", tir.Above)
	}
	if tir.Below != 0 {
		t.Errorf("Expected below 0, got %f", tir.Below)
	}
}

func TestTimeInRange_FractionsSumToOne(t *testing.T) {
	t.Parallel()

	windows := [][]float64{
		{55, 60, 65, 70},
		{40, 120, 250, 181, 69, 70, 180},
		{100, 100, 100, 100, 100},
		{300, 20, 150, 175, 62, 199, 88, 140, 133},
	}
	for _, values := range windows {
		tir, ok := TimeInRange(dailyReadings(values...), NewBand(70, 180), 4).Get()
		if !ok {
			t.Fatalf("Expected result for %v", values)
		}
		if sum := tir.InRange + tir.Above + tir.Below; !approxEqual(sum, 1, 1e-9) {
			t.Errorf("Expected fractions to sum to 1 for %v, got %f", values, sum)
		}
	}
}

func TestTimeInRange_InsufficientData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		readings []models.GlucoseReading
	}{
		{name: "no readings", readings: nil},
		{name: "three readings", readings: dailyReadings(100, 110, 120)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := TimeInRange(tt.readings, NewBand(70, 180), 4)
			if m.Ok() {
				t.Fatal("Expected insufficient data")
			}
			if !strings.HasPrefix(m.Reason(), InsufficientData) {
				t.Errorf("Expected reason to start with %q, got %q", InsufficientData, m.Reason())
			}
		})
	}
}

func TestTrend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		values     []float64
		want       TrendDirection
		wantFirst  float64
		wantSecond float64
		wantOk     bool
	}{
		{
			name:       "scenario moves away from midpoint",
			values:     []float64{90, 95, 100, 180, 190, 200},
			want:       TrendWorsening,
			wantFirst:  95,
			wantSecond: 190,
			wantOk:     true,
		},
		{
			name:       "high readings come down",
			values:     []float64{220, 230, 210, 140, 135, 130},
			want:       TrendImproving,
			wantFirst:  220,
			wantSecond: 135,
			wantOk:     true,
		},
		{
			name:       "flat readings",
			values:     []float64{120, 125, 122, 124},
			want:       TrendStable,
			wantFirst:  122.5,
			wantSecond: 123,
			wantOk:     true,
		},
		{
			name:       "odd count drops median",
			values:     []float64{100, 100, 500, 100, 100},
			want:       TrendStable,
			wantFirst:  100,
			wantSecond: 100,
			wantOk:     true,
		},
		{
			name:   "one reading per half",
			values: []float64{100, 200, 150},
			wantOk: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr, ok := Trend(dailyReadings(tt.values...), NewBand(70, 180), 0.05).Get()
			if ok != tt.wantOk {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOk, ok)
			}
			if !ok {
				return
			}
			if tr.Direction != tt.want {
				t.Errorf("Expected direction %s, got %s", tt.want, tr.Direction)
			}
			if !approxEqual(tr.FirstMean, tt.wantFirst, 1e-9) {
				t.Errorf("Expected first mean %f, got %f", tt.wantFirst, tr.FirstMean)
			}
			if !approxEqual(tr.SecondMean, tt.wantSecond, 1e-9) {
				t.Errorf("Expected second mean %f, got %f", tt.wantSecond, tr.SecondMean)
			}
		})
	}
}

func TestTrend_BandMidpoint(t *testing.T) {
	t.Parallel()

	if mid := DefaultThresholds().Band().Mid(); mid != 125 {
		t.Errorf("Expected default band midpoint 125, got %f", mid)
	}

	readings := dailyReadings(90, 95, 100, 180, 190, 200)
	for _, band := range []Band{NewBand(70, 180), NewBand(80, 180)} {
		tr, ok := Trend(readings, band, 0.05).Get()
		if !ok || tr.Direction != TrendWorsening {
			t.Errorf("Expected worsening around midpoint %.0f, got %+v (ok=%v)", band.Mid(), tr, ok)
		}
	}
}

func TestTrend_UsesTimestampOrder(t *testing.T) {
	t.Parallel()

	readings := dailyReadings(90, 95, 100, 180, 190, 200)
	shuffled := []models.GlucoseReading{readings[4], readings[0], readings[5], readings[2], readings[1], readings[3]}

	tr, ok := Trend(shuffled, NewBand(70, 180), 0.05).Get()
	if !ok {
		t.Fatal("Expected trend to be computed")
	}
	if tr.Direction != TrendWorsening {
		t.Errorf("Expected worsening regardless of input order, got %s", tr.Direction)
	}
	if shuffled[0].Value != 190 {
		t.Error("Expected input slice to be left unmodified")
	}
}

func TestVariability(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []float64
		want   VariabilityLevel
		wantOk bool
	}{
		{name: "tight control", values: []float64{110, 115, 112, 118, 109}, want: VariabilityStable, wantOk: true},
		{name: "wide swings", values: []float64{50, 250, 60, 240, 55}, want: VariabilityHigh, wantOk: true},
		{name: "single reading", values: []float64{120}, wantOk: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v, ok := Variability(dailyReadings(tt.values...), 0.36).Get()
			if ok != tt.wantOk {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOk, ok)
			}
			if ok && v.Level != tt.want {
				t.Errorf("Expected level %s, got %s (cv %.3f)", tt.want, v.Level, v.CV)
			}
		})
	}
}

func TestSummarizeAndTiming(t *testing.T) {
	t.Parallel()

	readings := dailyReadings(65, 120, 190, 110)
	readings[0].Timing = models.GlucoseTimingJustWokeUp
	readings[1].Timing = models.GlucoseTimingBeforeMeal
	readings[2].Timing = models.GlucoseTimingAfterMeal
	readings[3].Timing = models.GlucoseTimingBeforeMeal

	s, ok := Summarize(readings, NewBand(70, 180)).Get()
	if !ok {
		t.Fatal("Expected summary")
	}
	if s.Count != 4 || s.Min != 65 || s.Max != 190 {
		t.Errorf("Expected count 4 min 65 max 190, got %d %f %f", s.Count, s.Min, s.Max)
	}
	if s.Latest.Value != 110 {
		t.Errorf("Expected latest 110, got %f", s.Latest.Value)
	}
	if s.HighCount != 1 || s.LowCount != 1 {
		t.Errorf("Expected one high and one low, got %d and %d", s.HighCount, s.LowCount)
	}

	byTiming := AverageByTiming(readings)
	if byTiming[models.GlucoseTimingBeforeMeal] != 115 {
		t.Errorf("Expected before meal average 115, got %f", byTiming[models.GlucoseTimingBeforeMeal])
	}
	if _, ok := byTiming[models.GlucoseTimingBedtime]; ok {
		t.Error("Expected no bedtime average")
	}
}

func TestDetectSpikes(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	base := testStart
	readings := []models.GlucoseReading{
		{UserID: userID, Timestamp: base, Value: 100},
		{UserID: userID, Timestamp: base.Add(90 * time.Minute), Value: 165},  // spike
		{UserID: userID, Timestamp: base.Add(100 * time.Minute), Value: 200}, // too soon
		{UserID: userID, Timestamp: base.Add(10 * time.Hour), Value: 240},    // too late
		{UserID: userID, Timestamp: base.Add(11 * time.Hour), Value: 250},    // rise of 10
	}

	spikes := DetectSpikes(readings)
	if len(spikes) != 1 {
		t.Fatalf("Expected 1 spike, got %d", len(spikes))
	}
	if spikes[0].Rise != 65 {
		t.Errorf("Expected rise of 65, got %f", spikes[0].Rise)
	}
}

func TestAssessHypoglycemia(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	night := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	readings := []models.GlucoseReading{
		{UserID: userID, Timestamp: night, Value: 62},
		{UserID: userID, Timestamp: night.Add(8 * time.Hour), Value: 120},
	}

	risk := AssessHypoglycemia(readings, NewBand(70, 180), time.UTC)
	if risk.LowReadings != 1 || risk.NocturnalLows != 1 {
		t.Errorf("Expected one nocturnal low, got %+v", risk)
	}
	if !risk.Elevated {
		t.Error("Expected nocturnal low to elevate risk")
	}
	if risk.LowestValue != 62 {
		t.Errorf("Expected lowest value 62, got %f", risk.LowestValue)
	}
}

func TestNewBand_InvertedPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Expected panic for inverted band")
		}
		if _, ok := r.(*InputError); !ok {
			t.Errorf("Expected *InputError, got %T", r)
		}
	}()
	NewBand(180, 70)
}

func TestWindowStart_NegativePanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("Expected panic for negative window")
		}
	}()
	WindowStart(testStart, -1)
}
