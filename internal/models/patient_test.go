package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPatientContext_Validate(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	stranger := uuid.New()
	now := time.Now()

	tests := []struct {
		name        string
		ctx         PatientContext
		expectError bool
	}{
		{
			name: "all records owned by user",
			ctx: PatientContext{
				UserID: owner,
				Records: RecordSet{
					Glucose: []GlucoseReading{{UserID: owner, Timestamp: now, Value: 110}},
					Weight:  []WeightLog{{UserID: owner, Timestamp: now, Value: 80, Unit: WeightUnitKg}},
				},
			},
		},
		{
			name:        "missing user id",
			ctx:         PatientContext{},
			expectError: true,
		},
		{
			name: "foreign glucose reading",
			ctx: PatientContext{
				UserID: owner,
				Records: RecordSet{
					Glucose: []GlucoseReading{{UserID: stranger, Timestamp: now, Value: 110}},
				},
			},
			expectError: true,
		},
		{
			name: "foreign medication log",
			ctx: PatientContext{
				UserID: owner,
				Records: RecordSet{
					Medication: []MedicationLog{{UserID: stranger, Timestamp: now, Medication: "Metformin"}},
				},
			},
			expectError: true,
		},
		{
			name: "profile of another user",
			ctx: PatientContext{
				UserID:  owner,
				Profile: Profile{UserID: stranger},
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.ctx.Validate()
			if tt.expectError && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestLastUserMessage(t *testing.T) {
	t.Parallel()

	messages := []Message{
		{Role: RoleUser, Content: "how is my glucose?"},
		{Role: RoleAssistant, Content: "it looks stable"},
		{Role: RoleUser, Content: "what about yesterday?"},
		{Role: RoleAssistant, Content: ""},
	}
	if got := LastUserMessage(messages); got != "what about yesterday?" {
		t.Errorf("Expected last user message, got %q", got)
	}
	if got := LastUserMessage(nil); got != "" {
		t.Errorf("Expected empty string for no messages, got %q", got)
	}
}
