package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/benvon/health-chat/internal/models"
)

// AdherenceResult is the adherence of one medication since it was first recorded, or
// since the analysis window opened when the medication predates it
type AdherenceResult struct {
	Medication    string    `json:"medication"`
	FirstRecorded time.Time `json:"first_recorded"`
	DosedDays     int       `json:"dosed_days"`
	ElapsedDays   int       `json:"elapsed_days"`
	Percent       float64   `json:"percent"`
	Low           bool      `json:"low_adherence"`
}

// MedicationAdherence returns distinct dosed days divided by calendar days elapsed from
// firstRecorded to asOf, inclusive, as a percentage. Days are calendar days in asOf's
// location. Multiple doses on one day count once, so the result stays within [0, 100].
// An asOf before firstRecorded is a negative duration and panics.
func MedicationAdherence(name string, logs []models.MedicationLog, firstRecorded, asOf time.Time, lowThreshold float64) Metric[AdherenceResult] {
	loc := asOf.Location()
	firstDay := dayKey(firstRecorded, loc)
	lastDay := dayKey(asOf, loc)
	if lastDay.Before(firstDay) {
		panic(&InputError{Func: "MedicationAdherence", Msg: "as-of date precedes first record"})
	}

	dosed := make(map[time.Time]struct{})
	for _, l := range logs {
		if !sameMedication(l.Medication, name) {
			continue
		}
		day := dayKey(l.Timestamp, loc)
		if day.Before(firstDay) || day.After(lastDay) {
			continue
		}
		dosed[day] = struct{}{}
	}

	elapsed := daysBetween(firstDay, lastDay)
	percent := math.Min(100, float64(len(dosed))/float64(elapsed)*100)
	return sufficient(AdherenceResult{
		Medication:    name,
		FirstRecorded: firstRecorded,
		DosedDays:     len(dosed),
		ElapsedDays:   elapsed,
		Percent:       percent,
		Low:           percent < lowThreshold,
	})
}

// AdherenceByMedication computes adherence for every medication on the list and every
// medication seen in the logs. The first record of a medication is the earlier of its
// listed start date and its first log, moved forward to since when it falls before it:
// logs older than since are not available, so those days cannot count as missed.
// A zero since disables the clamp. Medications with neither a start date nor a log are
// insufficient.
func AdherenceByMedication(meds []models.Medication, logs []models.MedicationLog, since, asOf time.Time, lowThreshold float64) []Metric[AdherenceResult] {
	type entry struct {
		name  string
		first time.Time
	}
	byKey := make(map[string]*entry)
	var order []string

	track := func(name string, at *time.Time) {
		key := medicationKey(name)
		if key == "" {
			return
		}
		e, ok := byKey[key]
		if !ok {
			e = &entry{name: strings.TrimSpace(name)}
			byKey[key] = e
			order = append(order, key)
		}
		if at != nil && !at.After(asOf) && (e.first.IsZero() || at.Before(e.first)) {
			e.first = *at
		}
	}

	for _, m := range meds {
		track(m.Name, m.StartedAt)
	}
	sorted := make([]models.MedicationLog, len(logs))
	copy(sorted, logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	for i := range sorted {
		track(sorted[i].Medication, &sorted[i].Timestamp)
	}

	results := make([]Metric[AdherenceResult], 0, len(order))
	for _, key := range order {
		e := byKey[key]
		if e.first.IsZero() {
			results = append(results, insufficient[AdherenceResult]("no doses or start date recorded for %s", e.name))
			continue
		}
		first := e.first
		if !since.IsZero() && first.Before(since) {
			first = since
		}
		results = append(results, MedicationAdherence(e.name, sorted, first, asOf, lowThreshold))
	}
	return results
}

// MissingToday returns the listed medications with no dose logged on asOf's calendar day
func MissingToday(meds []models.Medication, logs []models.MedicationLog, asOf time.Time) []string {
	today := dayKey(asOf, asOf.Location())
	taken := make(map[string]struct{})
	for _, l := range logs {
		if dayKey(l.Timestamp, asOf.Location()).Equal(today) {
			taken[medicationKey(l.Medication)] = struct{}{}
		}
	}

	var missing []string
	for _, m := range meds {
		if _, ok := taken[medicationKey(m.Name)]; !ok && medicationKey(m.Name) != "" {
			missing = append(missing, m.Name)
		}
	}
	return missing
}

func medicationKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sameMedication(a, b string) bool {
	return medicationKey(a) == medicationKey(b)
}
