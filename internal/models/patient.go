package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profile holds the static demographic fields of a patient
type Profile struct {
	UserID        uuid.UUID `json:"user_id"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	Age           *int      `json:"age,omitempty"`
	Sex           string    `json:"sex,omitempty"`
	Ethnicity     string    `json:"ethnicity,omitempty"`
	HeightCm      *float64  `json:"height_cm,omitempty"`
	ActivityLevel string    `json:"activity_level,omitempty"`
	Location      string    `json:"location,omitempty"`
	// Optional per-patient glucose target band overriding the default
	TargetLow  *float64 `json:"target_low,omitempty"`
	TargetHigh *float64 `json:"target_high,omitempty"`
}

// DisplayName returns the patient's full name, or an empty string when unknown
func (p Profile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Condition is a diagnosed health condition
type Condition struct {
	Name        string     `json:"name"`
	Severity    string     `json:"severity,omitempty"`
	DiagnosedAt *time.Time `json:"diagnosed_at,omitempty"`
}

// Medication is a medication on the patient's active list
type Medication struct {
	Name      string     `json:"name"`
	Dosage    string     `json:"dosage,omitempty"`
	Frequency string     `json:"frequency,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// PatientContext is the per-turn snapshot of one patient's profile and recent records.
// It is assembled fresh for every turn and never persisted.
type PatientContext struct {
	UserID      uuid.UUID    `json:"user_id"`
	Profile     Profile      `json:"profile"`
	Conditions  []Condition  `json:"conditions"`
	Medications []Medication `json:"medications"`
	Records     RecordSet    `json:"records"`
	WindowDays  int          `json:"window_days"`
	AssembledAt time.Time    `json:"assembled_at"`
}

// Validate checks that every record in the context belongs to the context's user
func (c *PatientContext) Validate() error {
	if c.UserID == uuid.Nil {
		return fmt.Errorf("patient context has no user id")
	}
	if c.Profile.UserID != uuid.Nil && c.Profile.UserID != c.UserID {
		return fmt.Errorf("profile belongs to user %s, expected %s", c.Profile.UserID, c.UserID)
	}
	for _, owner := range c.Records.Owners() {
		if owner != c.UserID {
			return fmt.Errorf("record belongs to user %s, expected %s", owner, c.UserID)
		}
	}
	return nil
}

// ConditionNames returns the names of all conditions
func (c *PatientContext) ConditionNames() []string {
	names := make([]string, 0, len(c.Conditions))
	for _, cond := range c.Conditions {
		names = append(names, cond.Name)
	}
	return names
}

// MedicationNames returns the names of all listed medications
func (c *PatientContext) MedicationNames() []string {
	names := make([]string, 0, len(c.Medications))
	for _, med := range c.Medications {
		names = append(names, med.Name)
	}
	return names
}
