package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/health-chat/internal/knowledge"
	"github.com/benvon/health-chat/internal/router"
	"github.com/benvon/health-chat/internal/stream"
)

// NoInteractionData is streamed when the knowledge base has nothing for the question
const NoInteractionData = "No known interaction data found"

var (
	doseEscalation = []string{"double dose", "extra dose", "overdose", "two doses", "more than prescribed"}
	skippedMeal    = []string{"skip meal", "skip a meal", "skipped meal", "skipped a meal", "skipping meals", "skip breakfast", "skip lunch", "skip dinner", "fasting"}
)

// Caution lines streamed ahead of generation
const (
	doseCaution  = "Caution: taking more than the prescribed dose can be dangerous. Please contact your healthcare provider before changing any dose."
	hypoCaution  = "Caution: combining insulin with skipped meals can cause hypoglycemia. Check with your care team before changing your regimen."
	planReminder = "This guidance must not contradict the care plan for your recorded conditions: %s."
)

// ClinicalSafety checks questions about medicines and conditions against the knowledge base
type ClinicalSafety struct {
	*base
}

// ID implements Agent
func (a *ClinicalSafety) ID() router.AgentID {
	return router.AgentClinicalSafety
}

// Run implements Agent. Interaction facts are looked up for the names in the question and the
// patient's medications and conditions. When nothing is keyed by the question itself, the
// answer starts with NoInteractionData rather than relying on the model.
func (a *ClinicalSafety) Run(ctx context.Context, in Input, out stream.Sink) error {
	question := in.Question()
	asked := terms(question)

	var profile []string
	if in.Patient != nil {
		profile = append(in.Patient.MedicationNames(), in.Patient.ConditionNames()...)
	}

	questionFacts := knowledge.Dedupe(append(
		a.lookupFacts(ctx, asked, knowledge.DomainDrugInteraction),
		a.lookupFacts(ctx, asked, knowledge.DomainClinicalGuideline)...,
	))
	profileFacts := a.lookupFacts(ctx, profile, knowledge.DomainDrugInteraction)

	var g Grounding
	g.Cite(knowledge.Dedupe(append(questionFacts, profileFacts...)))
	if err := out.Send(g.Status()); err != nil {
		return err
	}

	var preface []string
	lower := strings.ToLower(question)
	if containsAny(lower, doseEscalation) {
		preface = append(preface, doseCaution)
	}
	if strings.Contains(lower, "insulin") && containsAny(lower, skippedMeal) {
		preface = append(preface, hypoCaution)
	}
	if len(questionFacts) == 0 {
		preface = append(preface, NoInteractionData+" for this question in the knowledge base, so I can't confirm it is safe. Please check with your pharmacist or doctor.")
	}
	for _, line := range preface {
		if err := say(out, line); err != nil {
			return err
		}
	}

	rules := []string{
		"Only describe interactions or contraindications that appear in the reference material.",
		"If the reference material does not cover the question, say that no known interaction data was found. Never invent drug facts.",
		"Recommend confirming any medication change with a healthcare provider.",
	}
	if in.Patient != nil && len(in.Patient.Conditions) > 0 {
		rules = append(rules, fmt.Sprintf(planReminder, strings.Join(in.Patient.ConditionNames(), ", ")))
	}

	return a.generate(ctx, prompt{
		role:      "You check questions about medications, doses and conditions for safety concerns.",
		in:        in,
		grounding: g,
		analysis:  safetyAnalysis(questionFacts, g),
		rules:     rules,
	}, out)
}

func safetyAnalysis(questionFacts []knowledge.Fact, g Grounding) string {
	if len(questionFacts) == 0 {
		return "Please don't start, stop or combine medications based on this chat alone."
	}
	var b strings.Builder
	b.WriteString("Here is what the knowledge base says:\n")
	for _, line := range g.Lines[:len(questionFacts)] {
		b.WriteString("- " + line + "\n")
	}
	b.WriteString("Please confirm any change with your healthcare provider.")
	return b.String()
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
