package analytics

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/benvon/health-chat/internal/models"
)

// Report bundles every metric computed for one patient context
type Report struct {
	AsOf                time.Time                         `json:"as_of"`
	WindowDays          int                               `json:"window_days"`
	Band                Band                              `json:"band"`
	Summary             Metric[GlucoseSummary]            `json:"summary"`
	TimeInRange         Metric[TimeInRangeResult]         `json:"time_in_range"`
	Trend               Metric[TrendResult]               `json:"trend"`
	Variability         Metric[VariabilityResult]         `json:"variability"`
	ByTiming            map[models.GlucoseTiming]float64  `json:"by_timing"`
	Spikes              []Spike                           `json:"spikes"`
	Hypoglycemia        HypoglycemiaRisk                  `json:"hypoglycemia"`
	ActivityCorrelation Metric[ActivityCorrelationResult] `json:"activity_correlation"`
	Activity            Metric[ActivityVolume]            `json:"activity"`
	WeightTrend         Metric[WeightTrendResult]         `json:"weight_trend"`
	BMI                 Metric[BMIResult]                 `json:"bmi"`
	Adherence           []Metric[AdherenceResult]         `json:"adherence"`
	MissingToday        []string                          `json:"missing_today"`
	Circadian           Metric[CircadianPattern]          `json:"circadian"`
	DoseTimes           []DoseTime                        `json:"dose_times"`
	Consistency         Metric[LifestyleConsistency]      `json:"consistency"`
	Targets             Metric[PersonalizedTargets]       `json:"targets"`
}

// BandFor returns the patient's own target band when the profile overrides it
func BandFor(profile models.Profile, th Thresholds) Band {
	low, high := th.TargetLow, th.TargetHigh
	if profile.TargetLow != nil {
		low = *profile.TargetLow
	}
	if profile.TargetHigh != nil {
		high = *profile.TargetHigh
	}
	return NewBand(low, high)
}

// Analyze computes every metric over the context's window ending at asOf.
// Calendar-day metrics use asOf's location.
func Analyze(pc *models.PatientContext, asOf time.Time, th Thresholds) Report {
	since := WindowStart(asOf, pc.WindowDays)
	band := BandFor(pc.Profile, th)

	glucose := FilterGlucose(pc.Records.Glucose, since, asOf)
	var weights []models.WeightLog
	for _, w := range pc.Records.Weight {
		if !w.Timestamp.Before(since) && !w.Timestamp.After(asOf) {
			weights = append(weights, w)
		}
	}
	var activities []models.ActivityLog
	for _, a := range pc.Records.Activity {
		if !a.Timestamp.Before(since) && !a.Timestamp.After(asOf) {
			activities = append(activities, a)
		}
	}

	var doses []models.MedicationLog
	for _, d := range pc.Records.Medication {
		if !d.Timestamp.Before(since) && !d.Timestamp.After(asOf) {
			doses = append(doses, d)
		}
	}

	weightUnit := models.WeightUnitKg
	if len(weights) > 0 {
		weightUnit = sortedWeights(weights)[len(weights)-1].Unit
	}

	loc := asOf.Location()
	summary := Summarize(glucose, band)
	circadian := Circadian(glucose, loc)
	doseTimes := UsualDoseTimes(pc.Medications, doses, loc)

	return Report{
		AsOf:                asOf,
		WindowDays:          pc.WindowDays,
		Band:                band,
		Summary:             summary,
		TimeInRange:         TimeInRange(glucose, band, th.MinReadings),
		Trend:               Trend(glucose, band, th.TrendShift),
		Variability:         Variability(glucose, th.HighCV),
		ByTiming:            AverageByTiming(glucose),
		Spikes:              DetectSpikes(glucose),
		Hypoglycemia:        AssessHypoglycemia(glucose, band, loc),
		ActivityCorrelation: ActivityCorrelation(glucose, activities, loc),
		Activity:            WeeklyActivity(activities, pc.WindowDays),
		WeightTrend:         WeightTrend(weights, weightUnit),
		BMI:                 BMI(weights, pc.Profile.HeightCm),
		Adherence:           AdherenceByMedication(pc.Medications, pc.Records.Medication, AdherenceWindowStart(asOf, pc.WindowDays), asOf, th.LowAdherence),
		MissingToday:        MissingToday(pc.Medications, pc.Records.Medication, asOf),
		Circadian:           circadian,
		DoseTimes:           doseTimes,
		Consistency:         Consistency(pc.Medications, doses, activities, pc.WindowDays, loc),
		Targets:             Targets(pc, summary, circadian, doseTimes),
	}
}

// Insights renders the report as human-readable findings. Metrics with insufficient data
// produce no insight.
func (r Report) Insights() []models.Insight {
	var out []models.Insight
	add := func(category models.InsightCategory, source, title, detail string) {
		out = append(out, models.Insight{Title: title, Detail: detail, Category: category, Source: source})
	}

	if s, ok := r.Summary.Get(); ok {
		add(models.InsightCategoryGlucose, "glucose-summary", "Glucose overview",
			fmt.Sprintf("Average %.0f mg/dL across %d readings (range %.0f-%.0f). Latest reading %.0f mg/dL.",
				s.Mean, s.Count, s.Min, s.Max, s.Latest.Value))
	}

	if tir, ok := r.TimeInRange.Get(); ok {
		title := "Time in range"
		if tir.InRange < 0.7 {
			title = "Time in range below target"
		}
		add(models.InsightCategoryGlucose, "glucose-time-in-range", title,
			fmt.Sprintf("%.1f%% of readings were within %.0f-%.0f mg/dL (%.1f%% above, %.1f%% below). The usual goal is at least 70%%.",
				tir.InRange*100, tir.Band.Low, tir.Band.High, tir.Above*100, tir.Below*100))
	}

	if tr, ok := r.Trend.Get(); ok {
		add(models.InsightCategoryGlucose, "glucose-trend", "Glucose trend: "+string(tr.Direction),
			fmt.Sprintf("Average glucose moved from %.0f to %.0f mg/dL between the earlier and later halves of the period.",
				tr.FirstMean, tr.SecondMean))
	}

	if v, ok := r.Variability.Get(); ok {
		detail := fmt.Sprintf("Coefficient of variation is %.0f%% (std dev %.1f mg/dL).", v.CV*100, v.StdDev)
		if v.Level == VariabilityHigh {
			detail += " High variability raises complication risk; consistent meal timing and medication routines help."
		}
		add(models.InsightCategoryGlucose, "glucose-variability", "Glucose variability: "+string(v.Level), detail)
	}

	if len(r.Spikes) > 0 {
		largest := r.Spikes[0]
		for _, s := range r.Spikes[1:] {
			if s.Rise > largest.Rise {
				largest = s
			}
		}
		add(models.InsightCategoryGlucose, "glucose-spikes", "Post-meal spike pattern",
			fmt.Sprintf("%d rapid rises detected; the largest was %.0f mg/dL within %s.",
				len(r.Spikes), largest.Rise, largest.To.Timestamp.Sub(largest.From.Timestamp).Round(time.Minute)))
	}

	if r.Hypoglycemia.LowReadings > 0 {
		title := "Low glucose readings"
		if r.Hypoglycemia.Elevated {
			title = "Hypoglycemia risk alert"
		}
		add(models.InsightCategoryGlucose, "hypoglycemia-risk", title,
			fmt.Sprintf("%d readings below %.0f mg/dL (lowest %.0f), %d overnight.",
				r.Hypoglycemia.LowReadings, r.Band.Low, r.Hypoglycemia.LowestValue, r.Hypoglycemia.NocturnalLows))
	}

	if c, ok := r.ActivityCorrelation.Get(); ok {
		relation := "lower"
		if c.Difference > 0 {
			relation = "higher"
		}
		add(models.InsightCategoryActivity, "activity-correlation", "Activity and glucose pattern",
			fmt.Sprintf("Glucose averaged %.0f mg/dL on active days versus %.0f on inactive days (%.0f mg/dL %s).",
				c.ActiveMean, c.InactiveMean, math.Abs(c.Difference), relation))
	}

	if a, ok := r.Activity.Get(); ok {
		title := "Activity on target"
		if !a.MeetsGuideline {
			title = "Activity below weekly target"
		}
		add(models.InsightCategoryActivity, "activity-volume", title,
			fmt.Sprintf("About %.0f active minutes per week across %d sessions; the guideline is %.0f.",
				a.WeeklyMinutes, a.Sessions, WeeklyActivityGuideline))
	}

	if w, ok := r.WeightTrend.Get(); ok {
		add(models.InsightCategoryWeight, "weight-trend", "Weight trend: "+string(w.Direction),
			fmt.Sprintf("Weight went from %.1f to %.1f %s (%+.1f %s).", w.First, w.Last, w.Unit, w.Change, w.Unit))
	}

	if b, ok := r.BMI.Get(); ok {
		add(models.InsightCategoryWeight, "bmi", "Body mass index",
			fmt.Sprintf("BMI is %.1f (%s).", b.Value, b.Category))
	}

	for _, m := range r.Adherence {
		a, ok := m.Get()
		if !ok {
			continue
		}
		title := "Medication adherence: " + a.Medication
		if a.Low {
			title = "Low adherence alert: " + a.Medication
		}
		add(models.InsightCategoryMedication, "medication-adherence", title,
			fmt.Sprintf("Logged on %d of %d days (%.0f%%).", a.DosedDays, a.ElapsedDays, a.Percent))
	}

	if len(r.MissingToday) > 0 {
		add(models.InsightCategoryMedication, "medication-today", "Medications not yet logged today",
			fmt.Sprintf("No dose logged today for: %s.", strings.Join(r.MissingToday, ", ")))
	}

	if c, ok := r.Circadian.Get(); ok {
		add(models.InsightCategoryGlucose, "glucose-circadian", "Daily glucose pattern",
			fmt.Sprintf("Glucose peaks around %s (average %.0f mg/dL) and dips around %s (average %.0f mg/dL).",
				clockHour(c.PeakHours[0]), c.PeakMean, clockHour(c.DipHours[0]), c.DipMean))
	}

	if c, ok := r.Consistency.Get(); ok {
		detail := fmt.Sprintf("Routine consistency score is %.0f%%.", c.Overall*100)
		if len(c.NeedsImprovement) > 0 {
			detail += " Areas to work on: " + strings.Join(c.NeedsImprovement, ", ") + "."
		}
		add(models.InsightCategoryGeneral, "lifestyle-consistency", "Lifestyle consistency", detail)
	}

	if t, ok := r.Targets.Get(); ok {
		detail := fmt.Sprintf("Aim for %.0f-%.0f mg/dL. %s Suggested meal times: %s.",
			t.Band.Low, t.Band.High, t.Rationale, strings.Join(t.MealTimes, ", "))
		add(models.InsightCategoryGeneral, "personalized-targets", "Personalized glucose target", detail)
	}

	return out
}
