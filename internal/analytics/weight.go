package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/benvon/health-chat/internal/models"
)

// LbsPerKg is the exact conversion factor between the two weight units
const LbsPerKg = 2.20462

// weightStableTolerance is the change in kg treated as no change
const weightStableTolerance = 0.1

// WeightDirection classifies the change between the first and last weight logs
type WeightDirection string

const (
	WeightGained WeightDirection = "gained"
	WeightLost   WeightDirection = "lost"
	WeightStable WeightDirection = "stable"
)

// WeightTrendResult is the linear difference between first and last weight in one unit
type WeightTrendResult struct {
	First     float64           `json:"first"`
	Last      float64           `json:"last"`
	Change    float64           `json:"change"`
	Unit      models.WeightUnit `json:"unit"`
	Direction WeightDirection   `json:"direction"`
	Logs      int               `json:"logs"`
}

// BMIResult is a body mass index computed from the latest weight
type BMIResult struct {
	Value    float64 `json:"value"`
	Category string  `json:"category"`
}

// KgToLbs converts kilograms to pounds
func KgToLbs(kg float64) float64 {
	return kg * LbsPerKg
}

// LbsToKg converts pounds to kilograms
func LbsToKg(lbs float64) float64 {
	return lbs / LbsPerKg
}

// ConvertWeight expresses value, logged in from, in unit to. Unknown units panic.
func ConvertWeight(value float64, from, to models.WeightUnit) float64 {
	checkUnit("ConvertWeight", from)
	checkUnit("ConvertWeight", to)
	if from == to {
		return value
	}
	if from == models.WeightUnitKg {
		return KgToLbs(value)
	}
	return LbsToKg(value)
}

func checkUnit(fn string, u models.WeightUnit) {
	if u != models.WeightUnitKg && u != models.WeightUnitLbs {
		panic(&InputError{Func: fn, Msg: fmt.Sprintf("unknown weight unit %q", u)})
	}
}

func sortedWeights(logs []models.WeightLog) []models.WeightLog {
	out := make([]models.WeightLog, len(logs))
	copy(out, logs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// WeightTrend compares the first and last logged weight after converting both to unit
func WeightTrend(logs []models.WeightLog, unit models.WeightUnit) Metric[WeightTrendResult] {
	checkUnit("WeightTrend", unit)
	if len(logs) < 2 {
		return insufficient[WeightTrendResult]("%d weight logs, need 2", len(logs))
	}

	sorted := sortedWeights(logs)
	first := ConvertWeight(sorted[0].Value, sorted[0].Unit, unit)
	last := ConvertWeight(sorted[len(sorted)-1].Value, sorted[len(sorted)-1].Unit, unit)
	change := last - first

	direction := WeightStable
	if math.Abs(ConvertWeight(change, unit, models.WeightUnitKg)) >= weightStableTolerance {
		if change > 0 {
			direction = WeightGained
		} else {
			direction = WeightLost
		}
	}

	return sufficient(WeightTrendResult{
		First:     first,
		Last:      last,
		Change:    change,
		Unit:      unit,
		Direction: direction,
		Logs:      len(sorted),
	})
}

// BMI computes body mass index from the most recent weight log and a height in centimetres
func BMI(logs []models.WeightLog, heightCm *float64) Metric[BMIResult] {
	if heightCm == nil || *heightCm <= 0 {
		return insufficient[BMIResult]("height not recorded")
	}
	if len(logs) == 0 {
		return insufficient[BMIResult]("no weight logs")
	}

	sorted := sortedWeights(logs)
	latest := sorted[len(sorted)-1]
	kg := ConvertWeight(latest.Value, latest.Unit, models.WeightUnitKg)
	m := *heightCm / 100
	value := kg / (m * m)

	var category string
	switch {
	case value < 18.5:
		category = "underweight"
	case value < 25:
		category = "normal"
	case value < 30:
		category = "overweight"
	default:
		category = "obese"
	}
	return sufficient(BMIResult{Value: value, Category: category})
}
