package router

import (
	"testing"

	"github.com/benvon/health-chat/internal/models"
)

func user(content string) models.Message {
	return models.Message{Role: models.RoleUser, Content: content}
}

func assistant(content string) models.Message {
	return models.Message{Role: models.RoleAssistant, Content: content}
}

func TestRoute(t *testing.T) {
	t.Parallel()

	r := New(DefaultConfidenceFloor)

	tests := []struct {
		name        string
		messages    []models.Message
		wantAgent   AgentID
		wantMatched string
		fallback    bool
	}{
		{
			name:        "average glucose is lifestyle",
			messages:    []models.Message{user("What's my average glucose this week?")},
			wantAgent:   AgentLifestyleAnalyst,
			wantMatched: "lifestyle_analytics",
		},
		{
			name:        "interaction question is clinical safety",
			messages:    []models.Message{user("Can I take ibuprofen with metformin?")},
			wantAgent:   AgentClinicalSafety,
			wantMatched: "medication_safety",
		},
		{
			name:        "safety outranks lifestyle vocabulary",
			messages:    []models.Message{user("Is my glucose level dangerous?")},
			wantAgent:   AgentClinicalSafety,
			wantMatched: "medication_safety",
		},
		{
			name:        "adherence tracking is lifestyle",
			messages:    []models.Message{user("Did I take my metformin today?")},
			wantAgent:   AgentLifestyleAnalyst,
			wantMatched: "medication_tracking",
		},
		{
			name:        "food question is dietitian",
			messages:    []models.Message{user("How many carbs in jollof rice?")},
			wantAgent:   AgentCulturalDietitian,
			wantMatched: "food_guidance",
		},
		{
			name:        "own medication question is lifestyle",
			messages:    []models.Message{user("Tell me about my medications")},
			wantAgent:   AgentLifestyleAnalyst,
			wantMatched: "own_medication",
		},
		{
			name:        "ambiguous medication defaults to safety",
			messages:    []models.Message{user("Is metformin a good medication?")},
			wantAgent:   AgentClinicalSafety,
			wantMatched: "ambiguous_medication",
		},
		{
			name:        "greeting is answered by general",
			messages:    []models.Message{user("Hello!")},
			wantAgent:   AgentGeneral,
			wantMatched: "greeting",
		},
		{
			name: "follow up inherits prior topic",
			messages: []models.Message{
				user("How was my blood sugar on Monday?"),
				assistant("Your readings averaged 132 mg/dL."),
				user("What about yesterday?"),
			},
			wantAgent:   AgentLifestyleAnalyst,
			wantMatched: "lifestyle_analytics_follow_up",
		},
		{
			name:        "unrelated question falls back",
			messages:    []models.Message{user("Tell me a joke about pirates")},
			wantAgent:   AgentGeneral,
			wantMatched: AgentUnmatched,
			fallback:    true,
		},
		{
			name:        "no user message falls back",
			messages:    []models.Message{assistant("How can I help?")},
			wantAgent:   AgentGeneral,
			wantMatched: AgentUnmatched,
			fallback:    true,
		},
		{
			name:        "substring does not match a keyword",
			messages:    []models.Message{user("I read a blog about pirates")},
			wantAgent:   AgentGeneral,
			wantMatched: AgentUnmatched,
			fallback:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := r.Route(tt.messages)
			if d.Agent != tt.wantAgent {
				t.Errorf("Expected agent %s, got %s", tt.wantAgent, d.Agent)
			}
			if d.Matched != tt.wantMatched {
				t.Errorf("Expected matched %s, got %s", tt.wantMatched, d.Matched)
			}
			if d.Fallback != tt.fallback {
				t.Errorf("Expected fallback=%v, got %v", tt.fallback, d.Fallback)
			}
			if !d.Fallback && d.Confidence < r.Floor() {
				t.Errorf("Expected confidence above floor, got %f", d.Confidence)
			}
		})
	}
}

func TestRoute_LifestyleConfidenceAboveFloor(t *testing.T) {
	t.Parallel()

	d := New(DefaultConfidenceFloor).Route([]models.Message{user("what's my average glucose this week?")})
	if d.Agent != AgentLifestyleAnalyst || d.Confidence <= DefaultConfidenceFloor {
		t.Errorf("Expected lifestyle analyst above floor, got %+v", d)
	}
	if d.Diagnostic() != string(AgentLifestyleAnalyst) {
		t.Errorf("Expected diagnostic lifestyle_analyst, got %s", d.Diagnostic())
	}
}

func TestRoute_Deterministic(t *testing.T) {
	t.Parallel()

	r := New(0)
	msgs := []models.Message{user("did I miss any doses of insulin last week?")}
	first := r.Route(msgs)
	for i := 0; i < 10; i++ {
		if got := r.Route(msgs); got.Agent != first.Agent || got.Confidence != first.Confidence {
			t.Fatalf("Expected identical decisions, got %+v and %+v", first, got)
		}
	}
}

func TestRoute_FloorControlsFallback(t *testing.T) {
	t.Parallel()

	history := []models.Message{
		user("How was my blood sugar on Monday?"),
		user("What about yesterday?"),
	}

	strict := New(0.6).Route(history)
	if !strict.Fallback || strict.Diagnostic() != AgentUnmatched {
		t.Errorf("Expected follow-up below a 0.6 floor to fall back, got %+v", strict)
	}
	if strict.Confidence == 0 {
		t.Error("Expected the computed confidence to be reported on fallback")
	}

	lenient := New(0.5).Route(history)
	if lenient.Fallback {
		t.Errorf("Expected follow-up to clear a 0.5 floor, got %+v", lenient)
	}
}

func TestRoute_ConfidenceGrowsWithHits(t *testing.T) {
	t.Parallel()

	r := New(0)
	one := r.Route([]models.Message{user("show my glucose")})
	many := r.Route([]models.Message{user("show my glucose readings trend and average after breakfast")})
	if many.Confidence <= one.Confidence {
		t.Errorf("Expected more keyword hits to raise confidence, got %f and %f", one.Confidence, many.Confidence)
	}
	if many.Confidence > maxConfidence {
		t.Errorf("Expected confidence capped at %f, got %f", maxConfidence, many.Confidence)
	}
}

func TestRouteMeal(t *testing.T) {
	t.Parallel()

	r := New(DefaultConfidenceFloor)

	d := r.RouteMeal([]models.Message{user("Here is my lunch")}, []string{"white rice", "chicken adobo"})
	if d.Agent != AgentCulturalDietitian || d.Matched != "food_items" {
		t.Errorf("Expected dietitian for food items, got %+v", d)
	}
	if len(d.Keywords) != 2 {
		t.Errorf("Expected food items as keywords, got %v", d.Keywords)
	}

	safety := r.RouteMeal([]models.Message{user("Is it safe to eat this with my insulin dose?")}, []string{"banana"})
	if safety.Agent != AgentClinicalSafety {
		t.Errorf("Expected safety to outrank food items, got %+v", safety)
	}

	plain := r.RouteMeal([]models.Message{user("What's my glucose trend?")}, nil)
	if plain.Agent != AgentLifestyleAnalyst {
		t.Errorf("Expected normal routing without food items, got %+v", plain)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	if got := normalize("What's my BMI?!"); got != " whats my bmi " {
		t.Errorf("Expected padded normalized text, got %q", got)
	}
	if got := normalize(""); got != " " {
		t.Errorf("Expected single space for empty input, got %q", got)
	}
}
