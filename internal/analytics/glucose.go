package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/benvon/health-chat/internal/models"
)

// TrendDirection classifies how glucose control moved across a window
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendWorsening TrendDirection = "worsening"
	TrendStable    TrendDirection = "stable"
)

// VariabilityLevel classifies the coefficient of variation
type VariabilityLevel string

const (
	VariabilityHigh   VariabilityLevel = "high"
	VariabilityStable VariabilityLevel = "stable"
)

// Spike detection bounds
const (
	SpikeMinRise   = 20.0
	SpikeMinWindow = 30 * time.Minute
	SpikeMaxWindow = 4 * time.Hour
)

// TimeInRangeResult holds the fractions of readings inside, above and below the band.
// The three fractions always sum to 1.
type TimeInRangeResult struct {
	Readings int     `json:"readings"`
	Band     Band    `json:"band"`
	InRange  float64 `json:"in_range"`
	Above    float64 `json:"above"`
	Below    float64 `json:"below"`
}

// TrendResult compares the earlier and later halves of a window
type TrendResult struct {
	Direction  TrendDirection `json:"direction"`
	FirstMean  float64        `json:"first_mean"`
	SecondMean float64        `json:"second_mean"`
	// Shift is the change in distance to the band midpoint, relative to the midpoint.
	// Positive means moving away from target.
	Shift float64 `json:"shift"`
}

// VariabilityResult describes the spread of readings
type VariabilityResult struct {
	Mean   float64          `json:"mean"`
	StdDev float64          `json:"std_dev"`
	CV     float64          `json:"cv"`
	Level  VariabilityLevel `json:"level"`
}

// GlucoseSummary holds descriptive statistics for a window
type GlucoseSummary struct {
	Count     int                   `json:"count"`
	Mean      float64               `json:"mean"`
	Min       float64               `json:"min"`
	Max       float64               `json:"max"`
	Latest    models.GlucoseReading `json:"latest"`
	HighCount int                   `json:"high_count"`
	LowCount  int                   `json:"low_count"`
}

// Spike is a rapid rise between two consecutive readings
type Spike struct {
	From models.GlucoseReading `json:"from"`
	To   models.GlucoseReading `json:"to"`
	Rise float64               `json:"rise"`
}

// HypoglycemiaRisk summarises readings below the target band
type HypoglycemiaRisk struct {
	LowReadings   int     `json:"low_readings"`
	NocturnalLows int     `json:"nocturnal_lows"`
	LowestValue   float64 `json:"lowest_value"`
	Elevated      bool    `json:"elevated"`
}

// sortedReadings returns a copy of readings ordered by timestamp
func sortedReadings(readings []models.GlucoseReading) []models.GlucoseReading {
	out := make([]models.GlucoseReading, len(readings))
	copy(out, readings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func meanOf(readings []models.GlucoseReading) float64 {
	if len(readings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range readings {
		sum += r.Value
	}
	return sum / float64(len(readings))
}

// TimeInRange computes the fraction of readings inside, above and below band.
// Fewer than minReadings readings yields an insufficient-data metric.
func TimeInRange(readings []models.GlucoseReading, band Band, minReadings int) Metric[TimeInRangeResult] {
	if minReadings < 1 {
		minReadings = 1
	}
	if len(readings) < minReadings {
		return insufficient[TimeInRangeResult]("%d readings, need %d", len(readings), minReadings)
	}

	var in, above, below int
	for _, r := range readings {
		switch {
		case r.Value > band.High:
			above++
		case r.Value < band.Low:
			below++
		default:
			in++
		}
	}

	n := float64(len(readings))
	return sufficient(TimeInRangeResult{
		Readings: len(readings),
		Band:     band,
		InRange:  float64(in) / n,
		Above:    float64(above) / n,
		Below:    float64(below) / n,
	})
}

// Trend splits the readings at their midpoint by timestamp into two equal-count halves and
// compares how far each half's mean sits from the band midpoint. With an odd count the
// median reading belongs to neither half. Each half needs at least two readings.
// The midpoint is derived from the band: 125 for the default 70-180 band, not the
// rounded 130 often quoted for it. Both classify typical readings the same way.
func Trend(readings []models.GlucoseReading, band Band, shiftThreshold float64) Metric[TrendResult] {
	sorted := sortedReadings(readings)
	half := len(sorted) / 2
	if half < 2 {
		return insufficient[TrendResult]("%d readings, need 2 per half", len(sorted))
	}

	first := sorted[:half]
	second := sorted[len(sorted)-half:]
	firstMean := meanOf(first)
	secondMean := meanOf(second)

	mid := band.Mid()
	shift := (math.Abs(secondMean-mid) - math.Abs(firstMean-mid)) / mid

	direction := TrendStable
	switch {
	case shift > shiftThreshold:
		direction = TrendWorsening
	case shift < -shiftThreshold:
		direction = TrendImproving
	}

	return sufficient(TrendResult{
		Direction:  direction,
		FirstMean:  firstMean,
		SecondMean: secondMean,
		Shift:      shift,
	})
}

// Variability computes the coefficient of variation using the sample standard deviation
func Variability(readings []models.GlucoseReading, highCV float64) Metric[VariabilityResult] {
	if len(readings) < 2 {
		return insufficient[VariabilityResult]("%d readings, need 2", len(readings))
	}
	mean := meanOf(readings)
	if mean <= 0 {
		return insufficient[VariabilityResult]("non-positive mean")
	}

	var sq float64
	for _, r := range readings {
		d := r.Value - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(readings)-1))
	cv := std / mean

	level := VariabilityStable
	if cv > highCV {
		level = VariabilityHigh
	}
	return sufficient(VariabilityResult{Mean: mean, StdDev: std, CV: cv, Level: level})
}

// Summarize computes descriptive statistics and counts of readings outside band
func Summarize(readings []models.GlucoseReading, band Band) Metric[GlucoseSummary] {
	if len(readings) == 0 {
		return insufficient[GlucoseSummary]("no readings")
	}
	sorted := sortedReadings(readings)
	summary := GlucoseSummary{
		Count:  len(sorted),
		Mean:   meanOf(sorted),
		Min:    sorted[0].Value,
		Max:    sorted[0].Value,
		Latest: sorted[len(sorted)-1],
	}
	for _, r := range sorted {
		summary.Min = math.Min(summary.Min, r.Value)
		summary.Max = math.Max(summary.Max, r.Value)
		if r.Value > band.High {
			summary.HighCount++
		}
		if r.Value < band.Low {
			summary.LowCount++
		}
	}
	return sufficient(summary)
}

// AverageByTiming returns the mean reading per timing tag. Untagged readings are skipped.
func AverageByTiming(readings []models.GlucoseReading) map[models.GlucoseTiming]float64 {
	sums := make(map[models.GlucoseTiming]float64)
	counts := make(map[models.GlucoseTiming]int)
	for _, r := range readings {
		if r.Timing == "" {
			continue
		}
		sums[r.Timing] += r.Value
		counts[r.Timing]++
	}
	out := make(map[models.GlucoseTiming]float64, len(sums))
	for timing, sum := range sums {
		out[timing] = sum / float64(counts[timing])
	}
	return out
}

// DetectSpikes finds consecutive readings that rise by more than SpikeMinRise within
// SpikeMinWindow to SpikeMaxWindow
func DetectSpikes(readings []models.GlucoseReading) []Spike {
	sorted := sortedReadings(readings)
	var spikes []Spike
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		gap := cur.Timestamp.Sub(prev.Timestamp)
		if gap < SpikeMinWindow || gap > SpikeMaxWindow {
			continue
		}
		if rise := cur.Value - prev.Value; rise > SpikeMinRise {
			spikes = append(spikes, Spike{From: prev, To: cur, Rise: rise})
		}
	}
	return spikes
}

// AssessHypoglycemia counts readings below the band. Lows between midnight and 6am in loc
// are nocturnal; any nocturnal low or two or more lows elevate the risk.
func AssessHypoglycemia(readings []models.GlucoseReading, band Band, loc *time.Location) HypoglycemiaRisk {
	var risk HypoglycemiaRisk
	for _, r := range readings {
		if r.Value >= band.Low {
			continue
		}
		if risk.LowReadings == 0 || r.Value < risk.LowestValue {
			risk.LowestValue = r.Value
		}
		risk.LowReadings++
		if r.Timestamp.In(loc).Hour() < 6 {
			risk.NocturnalLows++
		}
	}
	risk.Elevated = risk.NocturnalLows > 0 || risk.LowReadings >= 2
	return risk
}

// FilterGlucose returns the readings with timestamps in [since, until]
func FilterGlucose(readings []models.GlucoseReading, since, until time.Time) []models.GlucoseReading {
	out := make([]models.GlucoseReading, 0, len(readings))
	for _, r := range readings {
		if r.Timestamp.Before(since) || r.Timestamp.After(until) {
			continue
		}
		out = append(out, r)
	}
	return out
}
