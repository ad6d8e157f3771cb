package records

import (
	"fmt"
	"strings"

	"github.com/benvon/health-chat/internal/analytics"
	"github.com/benvon/health-chat/internal/models"
)

// Summary renders a deterministic text block describing the patient and their metrics.
// It is embedded in agent system prompts.
func Summary(pc *models.PatientContext, report analytics.Report) string {
	var parts []string

	if profile := profileLines(pc.Profile); len(profile) > 0 {
		parts = append(parts, "Patient profile:\n"+strings.Join(profile, "\n"))
	}
	if names := pc.ConditionNames(); len(names) > 0 {
		parts = append(parts, "Conditions: "+strings.Join(names, ", "))
	}
	if len(pc.Medications) > 0 {
		meds := make([]string, 0, len(pc.Medications))
		for _, m := range pc.Medications {
			meds = append(meds, strings.Join(strings.Fields(m.Name+" "+m.Dosage+" "+m.Frequency), " "))
		}
		parts = append(parts, "Medications: "+strings.Join(meds, "; "))
	}

	coverage := []string{
		fmt.Sprintf("- Glucose readings: %d", len(pc.Records.Glucose)),
		fmt.Sprintf("- Weight logs: %d", len(pc.Records.Weight)),
		fmt.Sprintf("- Activity sessions: %d", len(pc.Records.Activity)),
		fmt.Sprintf("- Medication logs: %d", len(pc.Records.Medication)),
	}
	parts = append(parts, fmt.Sprintf("Data coverage (last %d days):\n%s", pc.WindowDays, strings.Join(coverage, "\n")))

	parts = append(parts, "Metrics:\n"+strings.Join(metricLines(report), "\n"))
	return strings.Join(parts, "\n\n")
}

func profileLines(p models.Profile) []string {
	var lines []string
	if name := p.DisplayName(); name != "" {
		lines = append(lines, "- Name: "+name)
	}
	if p.Age != nil {
		lines = append(lines, fmt.Sprintf("- Age: %d", *p.Age))
	}
	if p.Sex != "" {
		lines = append(lines, "- Sex: "+p.Sex)
	}
	if p.Ethnicity != "" {
		lines = append(lines, "- Ethnicity: "+p.Ethnicity)
	}
	if p.ActivityLevel != "" {
		lines = append(lines, "- Activity level: "+p.ActivityLevel)
	}
	if p.Location != "" {
		lines = append(lines, "- Location: "+p.Location)
	}
	return lines
}

func metricLines(r analytics.Report) []string {
	lines := []string{fmt.Sprintf("- Target band: %.0f-%.0f mg/dL", r.Band.Low, r.Band.High)}

	if s, ok := r.Summary.Get(); ok {
		lines = append(lines, fmt.Sprintf("- Average glucose: %.0f mg/dL over %d readings (min %.0f, max %.0f)", s.Mean, s.Count, s.Min, s.Max))
	} else {
		lines = append(lines, "- Average glucose: insufficient data")
	}
	if tir, ok := r.TimeInRange.Get(); ok {
		lines = append(lines, fmt.Sprintf("- Time in range: %.1f%% (above %.1f%%, below %.1f%%)", tir.InRange*100, tir.Above*100, tir.Below*100))
	} else {
		lines = append(lines, "- Time in range: "+r.TimeInRange.Reason())
	}
	if tr, ok := r.Trend.Get(); ok {
		lines = append(lines, fmt.Sprintf("- Trend: %s (%.0f -> %.0f mg/dL)", tr.Direction, tr.FirstMean, tr.SecondMean))
	} else {
		lines = append(lines, "- Trend: indeterminate ("+r.Trend.Reason()+")")
	}
	if v, ok := r.Variability.Get(); ok {
		lines = append(lines, fmt.Sprintf("- Variability: %s (CV %.0f%%)", v.Level, v.CV*100))
	}
	if c, ok := r.ActivityCorrelation.Get(); ok {
		lines = append(lines, fmt.Sprintf("- Active vs inactive days: %.0f vs %.0f mg/dL", c.ActiveMean, c.InactiveMean))
	} else {
		lines = append(lines, "- Active vs inactive days: insufficient contrast")
	}
	if a, ok := r.Activity.Get(); ok {
		lines = append(lines, fmt.Sprintf("- Activity: %.0f minutes per week", a.WeeklyMinutes))
	}
	if w, ok := r.WeightTrend.Get(); ok {
		lines = append(lines, fmt.Sprintf("- Weight: %.1f -> %.1f %s (%s)", w.First, w.Last, w.Unit, w.Direction))
	}
	if b, ok := r.BMI.Get(); ok {
		lines = append(lines, fmt.Sprintf("- BMI: %.1f (%s)", b.Value, b.Category))
	}
	for _, m := range r.Adherence {
		if a, ok := m.Get(); ok {
			flag := ""
			if a.Low {
				flag = ", low adherence"
			}
			lines = append(lines, fmt.Sprintf("- %s adherence: %.0f%% (%d of %d days%s)", a.Medication, a.Percent, a.DosedDays, a.ElapsedDays, flag))
		}
	}
	if len(r.MissingToday) > 0 {
		lines = append(lines, "- Not logged today: "+strings.Join(r.MissingToday, ", "))
	}
	if c, ok := r.Circadian.Get(); ok {
		lines = append(lines, fmt.Sprintf("- Daily pattern: peak around %02d:00 (%.0f mg/dL), dip around %02d:00 (%.0f mg/dL)", c.PeakHours[0], c.PeakMean, c.DipHours[0], c.DipMean))
	}
	if c, ok := r.Consistency.Get(); ok {
		lines = append(lines, fmt.Sprintf("- Routine consistency: %.0f%%", c.Overall*100))
	}
	if t, ok := r.Targets.Get(); ok {
		lines = append(lines, fmt.Sprintf("- Suggested target: %.0f-%.0f mg/dL", t.Band.Low, t.Band.High))
	}
	return lines
}
