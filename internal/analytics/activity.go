package analytics

import (
	"fmt"
	"time"

	"github.com/benvon/health-chat/internal/models"
)

// WeeklyActivityGuideline is the recommended minutes of activity per week
const WeeklyActivityGuideline = 150.0

// ActivityCorrelationResult compares mean glucose on active and inactive days
type ActivityCorrelationResult struct {
	ActiveDays   int     `json:"active_days"`
	InactiveDays int     `json:"inactive_days"`
	ActiveMean   float64 `json:"active_mean"`
	InactiveMean float64 `json:"inactive_mean"`
	// Difference is ActiveMean minus InactiveMean; negative means lower glucose on active days
	Difference float64 `json:"difference"`
}

// ActivityVolume summarises activity minutes over a window
type ActivityVolume struct {
	Sessions       int     `json:"sessions"`
	TotalMinutes   float64 `json:"total_minutes"`
	WeeklyMinutes  float64 `json:"weekly_minutes"`
	MeetsGuideline bool    `json:"meets_guideline"`
}

// ActivityCorrelation buckets readings by calendar day in loc and splits the days into those
// with at least one activity log and those without. Timing tags are ignored. Both groups must
// be non-empty, otherwise the contrast is insufficient.
func ActivityCorrelation(readings []models.GlucoseReading, activities []models.ActivityLog, loc *time.Location) Metric[ActivityCorrelationResult] {
	activeDays := make(map[time.Time]struct{}, len(activities))
	for _, a := range activities {
		activeDays[dayKey(a.Timestamp, loc)] = struct{}{}
	}

	var activeSum, inactiveSum float64
	var activeCount, inactiveCount int
	activeSeen := make(map[time.Time]struct{})
	inactiveSeen := make(map[time.Time]struct{})
	for _, r := range readings {
		day := dayKey(r.Timestamp, loc)
		if _, ok := activeDays[day]; ok {
			activeSum += r.Value
			activeCount++
			activeSeen[day] = struct{}{}
			continue
		}
		inactiveSum += r.Value
		inactiveCount++
		inactiveSeen[day] = struct{}{}
	}

	if activeCount == 0 || inactiveCount == 0 {
		return insufficient[ActivityCorrelationResult]("insufficient contrast: %d active and %d inactive days with readings",
			len(activeSeen), len(inactiveSeen))
	}

	activeMean := activeSum / float64(activeCount)
	inactiveMean := inactiveSum / float64(inactiveCount)
	return sufficient(ActivityCorrelationResult{
		ActiveDays:   len(activeSeen),
		InactiveDays: len(inactiveSeen),
		ActiveMean:   activeMean,
		InactiveMean: inactiveMean,
		Difference:   activeMean - inactiveMean,
	})
}

// WeeklyActivity totals activity minutes and scales them to a weekly rate over windowDays
func WeeklyActivity(activities []models.ActivityLog, windowDays int) Metric[ActivityVolume] {
	if windowDays < 0 {
		panic(&InputError{Func: "WeeklyActivity", Msg: fmt.Sprintf("negative window of %d days", windowDays)})
	}
	if windowDays == 0 {
		return insufficient[ActivityVolume]("empty window")
	}

	var total float64
	for _, a := range activities {
		if a.Value < 0 {
			panic(&InputError{Func: "WeeklyActivity", Msg: fmt.Sprintf("negative duration %.1f", a.Value)})
		}
		total += a.Value
	}

	weeks := float64(windowDays) / 7
	if weeks < 1 {
		weeks = 1
	}
	weekly := total / weeks
	return sufficient(ActivityVolume{
		Sessions:       len(activities),
		TotalMinutes:   total,
		WeeklyMinutes:  weekly,
		MeetsGuideline: weekly >= WeeklyActivityGuideline,
	})
}
