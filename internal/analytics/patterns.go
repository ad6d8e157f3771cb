package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/benvon/health-chat/internal/models"
)

const (
	// circadianStabilitySpread is the spread of hourly means, in mg/dL, at which stability reaches 0
	circadianStabilitySpread = 50.0
	// timingSpreadMinutes is the spread of dose times at which timing consistency reaches 0
	timingSpreadMinutes = 120.0

	lowTimingConsistency   = 0.6
	lowActivityConsistency = 0.5
)

// CircadianPattern describes how glucose varies with the hour of day
type CircadianPattern struct {
	HourlyMeans map[int]float64 `json:"hourly_means"`
	// PeakHours are up to three hours with the highest mean, highest first
	PeakHours []int `json:"peak_hours"`
	// DipHours are up to three hours with the lowest mean, lowest first
	DipHours []int   `json:"dip_hours"`
	PeakMean float64 `json:"peak_mean"`
	DipMean  float64 `json:"dip_mean"`
	// Stability is 1 when every hour has the same mean and falls to 0 as they spread
	Stability float64 `json:"stability"`
}

// Circadian groups readings by hour of day in loc. It needs readings in at least two
// distinct hours.
func Circadian(readings []models.GlucoseReading, loc *time.Location) Metric[CircadianPattern] {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, r := range readings {
		h := r.Timestamp.In(loc).Hour()
		sums[h] += r.Value
		counts[h]++
	}
	if len(counts) < 2 {
		return insufficient[CircadianPattern]("readings in %d distinct hours, need 2", len(counts))
	}

	means := make(map[int]float64, len(counts))
	hours := make([]int, 0, len(counts))
	for h, n := range counts {
		means[h] = sums[h] / float64(n)
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool {
		if means[hours[i]] != means[hours[j]] {
			return means[hours[i]] > means[hours[j]]
		}
		return hours[i] < hours[j]
	})

	n := min(3, len(hours))
	peak := append([]int(nil), hours[:n]...)
	dip := make([]int, 0, n)
	for i := len(hours) - 1; i >= len(hours)-n; i-- {
		dip = append(dip, hours[i])
	}

	var mean float64
	for _, m := range means {
		mean += m
	}
	mean /= float64(len(means))
	var sq float64
	for _, m := range means {
		sq += (m - mean) * (m - mean)
	}
	spread := math.Sqrt(sq / float64(len(means)))

	return sufficient(CircadianPattern{
		HourlyMeans: means,
		PeakHours:   peak,
		DipHours:    dip,
		PeakMean:    means[peak[0]],
		DipMean:     means[dip[0]],
		Stability:   math.Max(0, 1-spread/circadianStabilitySpread),
	})
}

// DoseTime is the hour of day a medication is usually taken
type DoseTime struct {
	Medication string `json:"medication"`
	Hour       int    `json:"hour"`
	Doses      int    `json:"doses"`
}

// UsualDoseTimes returns the most common dosing hour of each listed medication that has
// logs. Ties go to the earlier hour.
func UsualDoseTimes(meds []models.Medication, logs []models.MedicationLog, loc *time.Location) []DoseTime {
	var out []DoseTime
	for _, m := range meds {
		byHour := make(map[int]int)
		total := 0
		for _, l := range logs {
			if sameMedication(l.Medication, m.Name) {
				byHour[l.Timestamp.In(loc).Hour()]++
				total++
			}
		}
		if total == 0 {
			continue
		}
		best := -1
		for h, c := range byHour {
			if best < 0 || c > byHour[best] || (c == byHour[best] && h < best) {
				best = h
			}
		}
		out = append(out, DoseTime{Medication: strings.TrimSpace(m.Name), Hour: best, Doses: total})
	}
	return out
}

// LifestyleConsistency scores how regular the patient's routines are, each in [0, 1].
// A component with no data is nil.
type LifestyleConsistency struct {
	MedicationTiming *float64 `json:"medication_timing,omitempty"`
	Activity         *float64 `json:"activity,omitempty"`
	Overall          float64  `json:"overall"`
	NeedsImprovement []string `json:"needs_improvement"`
}

// Consistency scores dose timing regularity and the share of days with activity over a
// window of windowDays calendar days. Dose times are compared on a 24 hour clock, so doses
// either side of midnight count as close. It needs either medication or activity logs.
func Consistency(meds []models.Medication, doses []models.MedicationLog, activities []models.ActivityLog, windowDays int, loc *time.Location) Metric[LifestyleConsistency] {
	if windowDays < 0 {
		panic(&InputError{Func: "Consistency", Msg: fmt.Sprintf("negative window of %d days", windowDays)})
	}
	if len(doses) == 0 && len(activities) == 0 {
		return insufficient[LifestyleConsistency]("no medication or activity logs")
	}

	result := LifestyleConsistency{NeedsImprovement: []string{}}
	var scores []float64

	switch {
	case len(doses) >= 2:
		minutes := make([]float64, len(doses))
		for i, d := range doses {
			local := d.Timestamp.In(loc)
			minutes[i] = float64(local.Hour()*60 + local.Minute())
		}
		score := math.Max(0, 1-circularSpread(minutes, 24*60)/timingSpreadMinutes)
		result.MedicationTiming = &score
		scores = append(scores, score)
		if score < lowTimingConsistency {
			result.NeedsImprovement = append(result.NeedsImprovement, "Medication timing consistency")
		}
	case len(doses) == 0 && len(meds) > 0:
		result.NeedsImprovement = append(result.NeedsImprovement, "Regular medication logging")
	}

	if len(activities) > 0 {
		days := make(map[time.Time]struct{})
		for _, a := range activities {
			days[dayKey(a.Timestamp, loc)] = struct{}{}
		}
		score := math.Min(1, float64(len(days))/float64(max(1, windowDays)))
		result.Activity = &score
		scores = append(scores, score)
		if score < lowActivityConsistency {
			result.NeedsImprovement = append(result.NeedsImprovement, "Regular physical activity")
		}
	} else {
		result.NeedsImprovement = append(result.NeedsImprovement, "Activity logging")
	}

	if len(scores) == 0 {
		return insufficient[LifestyleConsistency]("need at least 2 doses or 1 activity log")
	}
	for _, s := range scores {
		result.Overall += s
	}
	result.Overall /= float64(len(scores))
	return sufficient(result)
}

// circularSpread is the population standard deviation of values on a clock of the given
// period, measured around their circular mean
func circularSpread(values []float64, period float64) float64 {
	var sinSum, cosSum float64
	for _, v := range values {
		angle := 2 * math.Pi * v / period
		sinSum += math.Sin(angle)
		cosSum += math.Cos(angle)
	}
	center := math.Atan2(sinSum, cosSum) * period / (2 * math.Pi)

	var sq float64
	for _, v := range values {
		d := math.Mod(v-center, period)
		if d > period/2 {
			d -= period
		} else if d < -period/2 {
			d += period
		}
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

// PersonalizedTargets are suggestions derived from the patient's own patterns
type PersonalizedTargets struct {
	Band              Band              `json:"band"`
	Rationale         string            `json:"rationale"`
	MealTimes         []string          `json:"meal_times"`
	ActivityTimes     []string          `json:"activity_times"`
	MedicationTimings map[string]string `json:"medication_timings"`
}

var (
	defaultMealTimes     = []string{"08:00", "12:00", "18:00"}
	defaultActivityTimes = []string{"06:00", "18:00"}
)

// Targets suggests a glucose band and daily timings. A band set in the patient's profile
// is kept as is. Otherwise type 2 diabetes with a mean under 140 mg/dL gets 80-140,
// type 2 diabetes above it gets 80-180 as a first step, and everyone else 70-140.
// Meal times follow the circadian dips and activity is placed two hours before the peaks.
func Targets(pc *models.PatientContext, summary Metric[GlucoseSummary], circadian Metric[CircadianPattern], doseTimes []DoseTime) Metric[PersonalizedTargets] {
	s, ok := summary.Get()
	if !ok {
		return insufficient[PersonalizedTargets]("no glucose readings")
	}

	t := PersonalizedTargets{MedicationTimings: make(map[string]string)}
	switch {
	case pc.Profile.TargetLow != nil || pc.Profile.TargetHigh != nil:
		t.Band = BandFor(pc.Profile, DefaultThresholds())
		t.Rationale = "This is the range your care team set for you."
	case hasTypeTwoDiabetes(pc.Conditions) && s.Mean < 140:
		t.Band = NewBand(80, 140)
		t.Rationale = "Your glucose control is good. Staying within 80-140 mg/dL helps prevent complications."
	case hasTypeTwoDiabetes(pc.Conditions):
		t.Band = NewBand(80, 180)
		t.Rationale = "Your glucose levels are elevated. Aim for 80-180 mg/dL first, then work toward 80-140 mg/dL with your care team."
	default:
		t.Band = NewBand(70, 140)
		t.Rationale = "Standard target range for diabetes management."
	}

	if c, ok := circadian.Get(); ok {
		for _, h := range c.DipHours[:min(2, len(c.DipHours))] {
			t.MealTimes = append(t.MealTimes, clockHour(h))
		}
		for _, h := range c.PeakHours[:min(2, len(c.PeakHours))] {
			t.ActivityTimes = append(t.ActivityTimes, clockHour(h-2))
		}
	}
	if len(t.MealTimes) == 0 {
		t.MealTimes = append([]string(nil), defaultMealTimes...)
	}
	if len(t.ActivityTimes) == 0 {
		t.ActivityTimes = append([]string(nil), defaultActivityTimes...)
	}
	for _, d := range doseTimes {
		t.MedicationTimings[d.Medication] = clockHour(d.Hour)
	}
	return sufficient(t)
}

func hasTypeTwoDiabetes(conditions []models.Condition) bool {
	for _, c := range conditions {
		name := strings.ToLower(c.Name)
		if strings.Contains(name, "type 2") || strings.Contains(name, "type ii") {
			return true
		}
	}
	return false
}

func clockHour(h int) string {
	return fmt.Sprintf("%02d:00", ((h%24)+24)%24)
}
