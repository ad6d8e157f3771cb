package analytics

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/benvon/health-chat/internal/models"
	"github.com/google/uuid"
)

func TestAnalyze(t *testing.T) {
	t.Parallel()

	readings := dailyReadings(90, 95, 100, 180, 190, 200)
	userID := readings[0].UserID
	pc := &models.PatientContext{
		UserID:      userID,
		Medications: []models.Medication{{Name: "Metformin"}},
		Records: models.RecordSet{
			Glucose:    readings,
			Medication: doses(userID, "Metformin", 0, 2, 4),
		},
		WindowDays: 7,
	}
	asOf := testStart.AddDate(0, 0, 5)

	report := Analyze(pc, asOf, DefaultThresholds())

	tr, ok := report.Trend.Get()
	if !ok || tr.Direction != TrendWorsening {
		t.Errorf("Expected worsening trend, got %+v (ok=%v)", tr, ok)
	}
	if !report.TimeInRange.Ok() {
		t.Error("Expected time in range")
	}
	if report.WeightTrend.Ok() {
		t.Error("Expected weight trend to be insufficient without logs")
	}
	if len(report.Adherence) != 1 {
		t.Fatalf("Expected one adherence result, got %d", len(report.Adherence))
	}
	if a, _ := report.Adherence[0].Get(); a.Percent != 50 || !a.Low {
		t.Errorf("Expected 3 of 6 days and low adherence, got %+v", a)
	}

	insights := report.Insights()
	sources := make(map[string]bool)
	for _, in := range insights {
		sources[in.Source] = true
		if in.Title == "" || in.Detail == "" {
			t.Errorf("Expected populated insight, got %+v", in)
		}
	}
	for _, want := range []string{"glucose-time-in-range", "glucose-trend", "glucose-variability", "medication-adherence"} {
		if !sources[want] {
			t.Errorf("Expected insight from %s", want)
		}
	}
	if sources["weight-trend"] {
		t.Error("Expected no weight insight without weight data")
	}
}

func TestAnalyze_PatientBandOverride(t *testing.T) {
	t.Parallel()

	low, high := 80.0, 140.0
	readings := dailyReadings(90, 150, 100, 120)
	pc := &models.PatientContext{
		UserID:     readings[0].UserID,
		Profile:    models.Profile{TargetLow: &low, TargetHigh: &high},
		Records:    models.RecordSet{Glucose: readings},
		WindowDays: 30,
	}

	report := Analyze(pc, testStart.AddDate(0, 0, 4), DefaultThresholds())
	tir, ok := report.TimeInRange.Get()
	if !ok {
		t.Fatal("Expected time in range")
	}
	if tir.Band.Low != 80 || tir.Band.High != 140 {
		t.Errorf("Expected patient band 80-140, got %+v", tir.Band)
	}
	if tir.InRange != 0.75 {
		t.Errorf("Expected 75%% in range, got %f", tir.InRange)
	}
}

func TestAnalyze_WindowExcludesOldRecords(t *testing.T) {
	t.Parallel()

	readings := dailyReadings(100, 110, 120, 130, 140, 150, 160, 170, 180, 190)
	pc := &models.PatientContext{
		UserID:     readings[0].UserID,
		Records:    models.RecordSet{Glucose: readings},
		WindowDays: 3,
	}

	report := Analyze(pc, testStart.AddDate(0, 0, 9), DefaultThresholds())
	s, ok := report.Summary.Get()
	if !ok {
		t.Fatal("Expected summary")
	}
	if s.Count != 4 {
		t.Errorf("Expected 4 readings inside a 3 day window, got %d", s.Count)
	}
	if report.TimeInRange.Ok() != true {
		t.Error("Expected 4 readings to be enough for time in range")
	}
}

func TestMetric_MarshalJSON(t *testing.T) {
	t.Parallel()

	ok, err := json.Marshal(sufficient(TrendResult{Direction: TrendStable}))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(string(ok), `"status":"ok"`) || !strings.Contains(string(ok), `"direction":"stable"`) {
		t.Errorf("Unexpected encoding %s", ok)
	}

	missing, err := json.Marshal(insufficient[TrendResult]("%d readings", 1))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(string(missing), `"status":"insufficient_data"`) {
		t.Errorf("Unexpected encoding %s", missing)
	}
}

func TestSelectTopInsights(t *testing.T) {
	t.Parallel()

	insights := []models.Insight{
		{Title: "Glucose overview", Detail: "Average 120 mg/dL", Source: "glucose-summary"},
		{Title: "Glucose trend: stable", Detail: "moved from 120 to 121", Source: "glucose-trend"},
		{Title: "Body mass index", Detail: "BMI is 24.1", Source: "bmi"},
		{Title: "Hypoglycemia risk alert", Detail: "2 readings below 70", Source: "hypoglycemia-risk"},
		{Title: "Personalized target", Detail: "aim for 80-150", Source: "targets"},
	}

	top := SelectTopInsights(insights, DefaultTopInsights)
	if len(top) != 3 {
		t.Fatalf("Expected 3 insights, got %d", len(top))
	}
	want := []string{"hypoglycemia-risk", "targets", "glucose-trend"}
	for i, w := range want {
		if top[i].Source != w {
			t.Errorf("Expected position %d to be %s, got %s", i, w, top[i].Source)
		}
	}
	if insights[0].Source != "glucose-summary" {
		t.Error("Expected input order to be preserved")
	}
	if SelectTopInsights(insights, 0) != nil {
		t.Error("Expected nil for n=0")
	}
	if got := InsightPriority(models.Insight{Title: "Plain", Detail: "nothing here", Source: uuid.NewString()}); got != 1 {
		t.Errorf("Expected default priority 1, got %d", got)
	}
}
