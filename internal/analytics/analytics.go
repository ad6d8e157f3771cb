// Package analytics turns a patient's raw health logs into metrics and insights.
//
// Every function is pure: it reads per-call copies of the input and never performs I/O.
// Missing or sparse data is not an error. Functions return a Metric that either carries a
// value or an insufficient-data reason, and callers must handle both. Malformed input
// (negative windows, inverted bands, unknown units) is a programmer error and panics with
// an *InputError.
package analytics

import (
	"encoding/json"
	"fmt"
	"time"
)

// InsufficientData is the reason prefix reported by metrics that could not be computed
const InsufficientData = "insufficient data"

// Thresholds are the tunable clinical parameters of the engine
type Thresholds struct {
	TargetLow  float64 // mg/dL, inclusive
	TargetHigh float64 // mg/dL, inclusive
	// MinReadings is the minimum number of glucose readings for time-in-range
	MinReadings int
	// TrendShift is the relative change of distance to the band midpoint that counts as a trend
	TrendShift float64
	// HighCV is the coefficient of variation above which variability is high
	HighCV float64
	// LowAdherence is the adherence percentage below which a medication is flagged
	LowAdherence float64
}

// DefaultThresholds returns the standard clinical defaults
func DefaultThresholds() Thresholds {
	return Thresholds{
		TargetLow:    70,
		TargetHigh:   180,
		MinReadings:  4,
		TrendShift:   0.05,
		HighCV:       0.36,
		LowAdherence: 80,
	}
}

// Band returns the glucose target band described by the thresholds
func (t Thresholds) Band() Band {
	return NewBand(t.TargetLow, t.TargetHigh)
}

// Band is an inclusive glucose target range in mg/dL
type Band struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// NewBand builds a band and panics when low is above high
func NewBand(low, high float64) Band {
	if low > high {
		panic(&InputError{Func: "NewBand", Msg: fmt.Sprintf("low %.1f above high %.1f", low, high)})
	}
	return Band{Low: low, High: high}
}

// Contains reports whether v lies inside the band
func (b Band) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

// Mid returns the band midpoint
func (b Band) Mid() float64 {
	return (b.Low + b.High) / 2
}

// InputError reports malformed input handed to an analytics function.
// It is raised with panic because it can only result from a caller bug.
type InputError struct {
	Func string
	Msg  string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("analytics.%s: %s", e.Func, e.Msg)
}

// Metric holds either a computed value or the reason it could not be computed
type Metric[T any] struct {
	value  T
	ok     bool
	reason string
}

func sufficient[T any](v T) Metric[T] {
	return Metric[T]{value: v, ok: true}
}

func insufficient[T any](format string, args ...any) Metric[T] {
	return Metric[T]{reason: InsufficientData + ": " + fmt.Sprintf(format, args...)}
}

// Get returns the value and whether it was computed
func (m Metric[T]) Get() (T, bool) {
	return m.value, m.ok
}

// Ok reports whether the metric carries a value
func (m Metric[T]) Ok() bool {
	return m.ok
}

// Reason returns why the metric is missing, or "" when it was computed
func (m Metric[T]) Reason() string {
	return m.reason
}

// MarshalJSON encodes the metric as {"status":"ok","value":...} or
// {"status":"insufficient_data","reason":...}
func (m Metric[T]) MarshalJSON() ([]byte, error) {
	if !m.ok {
		return json.Marshal(struct {
			Status string `json:"status"`
			Reason string `json:"reason"`
		}{Status: "insufficient_data", Reason: m.reason})
	}
	return json.Marshal(struct {
		Status string `json:"status"`
		Value  T      `json:"value"`
	}{Status: "ok", Value: m.value})
}

// WindowStart returns the start of a window of days ending at asOf.
// A negative window is a programmer error.
func WindowStart(asOf time.Time, days int) time.Time {
	if days < 0 {
		panic(&InputError{Func: "WindowStart", Msg: fmt.Sprintf("negative window of %d days", days)})
	}
	return asOf.AddDate(0, 0, -days)
}

// AdherenceWindowStart returns the first calendar day of a window of days ending on
// asOf's day, so the window spans exactly days calendar days. A zero window is asOf's day.
func AdherenceWindowStart(asOf time.Time, days int) time.Time {
	if days <= 1 {
		return WindowStart(asOf, 0)
	}
	return WindowStart(asOf, days-1)
}

// dayKey maps a timestamp to its calendar day in loc
func dayKey(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the number of calendar days from a to b inclusive
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours()/24) + 1
}
