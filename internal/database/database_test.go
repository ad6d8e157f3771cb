package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/benvon/health-chat/internal/knowledge"
	"github.com/benvon/health-chat/internal/models"
)

func TestFactID_Deterministic(t *testing.T) {
	t.Parallel()

	fact := knowledge.Fact{
		Domain:   knowledge.DomainDrugInteraction,
		Entities: []string{"metformin"},
		Text:     "Metformin and alcohol raise lactic acidosis risk.",
		Source:   "FDA label",
	}
	retagged := fact
	retagged.Entities = []string{"metformin", "alcohol"}
	padded := fact
	padded.Text = "  " + fact.Text + "\n"

	if factID(fact) != factID(retagged) {
		t.Error("Expected entity tags not to change the fact ID")
	}
	if factID(fact) != factID(padded) {
		t.Error("Expected surrounding whitespace not to change the fact ID")
	}

	other := fact
	other.Domain = knowledge.DomainClinicalGuideline
	if factID(fact) == factID(other) {
		t.Error("Expected different domains to produce different IDs")
	}
}

func TestClaimsChanged(t *testing.T) {
	t.Parallel()

	name := "Ana Cruz"
	tests := []struct {
		name   string
		user   *models.User
		claims *models.JWTClaims
		want   bool
	}{
		{
			name:   "unchanged",
			user:   &models.User{Email: "ana@example.com", Name: &name},
			claims: &models.JWTClaims{Email: "ana@example.com", Name: "Ana Cruz"},
			want:   false,
		},
		{
			name:   "email changed",
			user:   &models.User{Email: "ana@example.com", Name: &name},
			claims: &models.JWTClaims{Email: "ana.cruz@example.com", Name: "Ana Cruz"},
			want:   true,
		},
		{
			name:   "name added",
			user:   &models.User{Email: "ana@example.com"},
			claims: &models.JWTClaims{Email: "ana@example.com", Name: "Ana Cruz"},
			want:   true,
		},
		{
			name:   "no name either side",
			user:   &models.User{Email: "ana@example.com"},
			claims: &models.JWTClaims{Email: "ana@example.com"},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := claimsChanged(tt.user, tt.claims); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNullHelpers(t *testing.T) {
	t.Parallel()

	if nullFloatPtr(sql.NullFloat64{}) != nil {
		t.Error("Expected nil for invalid float")
	}
	if got := nullFloatPtr(sql.NullFloat64{Float64: 172.5, Valid: true}); got == nil || *got != 172.5 {
		t.Errorf("Expected 172.5, got %v", got)
	}

	now := time.Now()
	if nullTimePtr(sql.NullTime{}) != nil {
		t.Error("Expected nil for invalid time")
	}
	if got := nullTimePtr(sql.NullTime{Time: now, Valid: true}); got == nil || !got.Equal(now) {
		t.Errorf("Expected %v, got %v", now, got)
	}
}
