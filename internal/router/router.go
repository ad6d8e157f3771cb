// Package router classifies a conversation into the agent that should answer it.
//
// Classification is keyword based and deterministic: the same message history always yields the
// same Decision. Rules are evaluated in priority order so that safety questions win over tracking
// and lifestyle questions that share vocabulary with them.
package router

import (
	"strings"
	"unicode"

	"github.com/benvon/health-chat/internal/models"
)

// AgentID identifies one of the fixed set of responding agents
type AgentID string

const (
	AgentLifestyleAnalyst  AgentID = "lifestyle_analyst"
	AgentClinicalSafety    AgentID = "clinical_safety"
	AgentCulturalDietitian AgentID = "cultural_dietitian"
	AgentGeneral           AgentID = "general"
)

// AgentUnmatched is reported in routing diagnostics when no rule cleared the confidence floor
const AgentUnmatched = "unmatched"

// DefaultConfidenceFloor is the confidence below which the router falls back to the general agent
const DefaultConfidenceFloor = 0.5

const (
	baseConfidence     = 0.6
	perHitConfidence   = 0.1
	maxConfidence      = 0.95
	ambiguousMedConf   = 0.55
	followUpConfidence = 0.55
	followUpDecay      = 0.1
	followUpLookback   = 3
	followUpMaxWords   = 8
	foodItemConfidence = 0.9
	greetingConfidence = 0.9
)

// Decision is the outcome of routing one turn
type Decision struct {
	Agent      AgentID  `json:"agent"`
	Confidence float64  `json:"confidence"`
	Matched    string   `json:"matched"`
	Keywords   []string `json:"keywords,omitempty"`
	Fallback   bool     `json:"fallback"`
}

// Diagnostic is the agent label surfaced to clients: the agent id, or AgentUnmatched on fallback
func (d Decision) Diagnostic() string {
	if d.Fallback {
		return AgentUnmatched
	}
	return string(d.Agent)
}

type rule struct {
	name     string
	agent    AgentID
	keywords []string
}

var rules = []rule{
	{
		name:  "medication_safety",
		agent: AgentClinicalSafety,
		keywords: []string{
			"side effect", "side effects", "adverse", "reaction", "interaction", "interactions",
			"safe to take", "can i take", "should i take", "is it safe", "is safe",
			"dose", "dosage", "increase dose", "decrease dose", "change dose", "adjust dose",
			"overdose", "double dose", "extra dose", "missed dose", "skip dose",
			"contraindication", "contraindicated", "warning", "warnings", "precaution",
			"harmful", "dangerous", "risk", "risky", "compatible", "incompatible",
			"prescription", "prescribed", "doctor said", "doctor told", "healthcare provider",
		},
	},
	{
		name:  "medication_tracking",
		agent: AgentLifestyleAnalyst,
		keywords: []string{
			"did i take", "have i taken", "when did i take", "when did i log",
			"recent medication", "recent med", "medication log", "med logs",
			"medication history", "med history", "taking regularly", "taking consistently",
			"adherence", "compliance", "missed", "forgot", "remember",
			"what medication", "which medication", "medications i", "meds i",
			"logged medication", "logged med", "took medication", "took med",
			"took medicine", "took insulin", "taken medicine", "taken insulin",
		},
	},
	{
		name:  "food_guidance",
		agent: AgentCulturalDietitian,
		keywords: []string{
			"i ate", "i had", "can i eat", "should i eat", "ok to eat", "okay to eat",
			"dish", "recipe", "cuisine", "portion", "serving", "calories", "nutrition",
			"carbs in", "how many carbs", "traditional food", "home cooking",
		},
	},
	{
		name:  "lifestyle_analytics",
		agent: AgentLifestyleAnalyst,
		keywords: []string{
			"glucose", "blood sugar", "sugar level", "reading", "readings",
			"log", "logs", "level", "levels", "measurement", "measurements",
			"exercise", "walk", "walking", "activity", "activities",
			"meal", "meals", "food", "diet", "eating", "carb", "carbs",
			"breakfast", "lunch", "dinner", "snack", "pattern", "patterns",
			"average", "trend", "trends", "history", "recent", "health", "bmi", "weight", "height",
		},
	},
}

var (
	ambiguousMedication = []string{"medication", "medications", "med", "meds", "medicine"}
	ownMedication       = []string{"my medication", "my medications", "my med", "my meds", "medications i", "meds i"}
	followUpCues        = []string{"what about", "how about", "and", "also", "same for", "compared to", "yesterday", "last week", "today"}
	greetings           = []string{"hi", "hello", "hey", "thanks", "thank you", "good morning", "good evening"}
)

// Router maps message histories to agents
type Router struct {
	floor float64
}

// New creates a router. A floor outside (0, 1] uses DefaultConfidenceFloor.
func New(floor float64) *Router {
	if floor <= 0 || floor > 1 {
		floor = DefaultConfidenceFloor
	}
	return &Router{floor: floor}
}

// Floor returns the confidence floor
func (r *Router) Floor() float64 {
	return r.floor
}

// Route classifies the latest user message, using earlier user messages to resolve short follow-ups
func (r *Router) Route(messages []models.Message) Decision {
	return r.finalize(classify(messages))
}

// RouteMeal routes a turn that carries a recognized food-item list. Safety questions still take
// priority; otherwise the cultural dietitian answers.
func (r *Router) RouteMeal(messages []models.Message, foodItems []string) Decision {
	if len(foodItems) == 0 {
		return r.Route(messages)
	}
	d := classify(messages)
	if d.Agent != AgentClinicalSafety || d.Confidence < r.floor {
		d = Decision{
			Agent:      AgentCulturalDietitian,
			Confidence: foodItemConfidence,
			Matched:    "food_items",
			Keywords:   append([]string(nil), foodItems...),
		}
	}
	return r.finalize(d)
}

func (r *Router) finalize(d Decision) Decision {
	if d.Agent == "" || d.Confidence < r.floor {
		return Decision{
			Agent:      AgentGeneral,
			Confidence: d.Confidence,
			Matched:    AgentUnmatched,
			Fallback:   true,
		}
	}
	return d
}

func classify(messages []models.Message) Decision {
	userTexts := userMessages(messages)
	if len(userTexts) == 0 {
		return Decision{}
	}
	latest := normalize(userTexts[len(userTexts)-1])

	if d, ok := matchRules(latest); ok {
		return d
	}
	if d, ok := matchAmbiguousMedication(latest); ok {
		return d
	}
	if containsAny(latest, greetings) != nil && wordCount(latest) <= 4 {
		return Decision{Agent: AgentGeneral, Confidence: greetingConfidence, Matched: "greeting"}
	}
	if isFollowUp(latest) {
		for back := 1; back <= followUpLookback && back < len(userTexts); back++ {
			prior := normalize(userTexts[len(userTexts)-1-back])
			if d, ok := matchRules(prior); ok {
				d.Confidence = followUpConfidence - followUpDecay*float64(back-1)
				d.Matched = d.Matched + "_follow_up"
				return d
			}
		}
	}
	return Decision{}
}

func matchRules(text string) (Decision, bool) {
	for _, rl := range rules {
		hits := containsAny(text, rl.keywords)
		if len(hits) == 0 {
			continue
		}
		conf := baseConfidence + perHitConfidence*float64(len(hits)-1)
		if conf > maxConfidence {
			conf = maxConfidence
		}
		return Decision{Agent: rl.agent, Confidence: conf, Matched: rl.name, Keywords: hits}, true
	}
	return Decision{}, false
}

func matchAmbiguousMedication(text string) (Decision, bool) {
	if containsAny(text, ambiguousMedication) == nil {
		return Decision{}, false
	}
	if hits := containsAny(text, ownMedication); hits != nil {
		return Decision{Agent: AgentLifestyleAnalyst, Confidence: ambiguousMedConf, Matched: "own_medication", Keywords: hits}, true
	}
	return Decision{Agent: AgentClinicalSafety, Confidence: ambiguousMedConf, Matched: "ambiguous_medication"}, true
}

func isFollowUp(text string) bool {
	return wordCount(text) <= followUpMaxWords && containsAny(text, followUpCues) != nil
}

func userMessages(messages []models.Message) []string {
	var out []string
	for _, m := range messages {
		if m.Role == models.RoleUser && strings.TrimSpace(m.Content) != "" {
			out = append(out, m.Content)
		}
	}
	return out
}

// normalize lowercases text, drops apostrophes and turns other punctuation into single spaces.
// Both ends are padded so that " keyword " matches on word boundaries.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(text) {
		if r == '\'' || r == '’' {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

func containsAny(text string, keywords []string) []string {
	var hits []string
	for _, k := range keywords {
		if strings.Contains(text, " "+k+" ") {
			hits = append(hits, k)
		}
	}
	return hits
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
