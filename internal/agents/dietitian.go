package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/health-chat/internal/knowledge"
	"github.com/benvon/health-chat/internal/router"
	"github.com/benvon/health-chat/internal/stream"
)

// CulturalDietitian gives meal advice framed by the patient's conditions and food culture
type CulturalDietitian struct {
	*base
}

// ID implements Agent
func (a *CulturalDietitian) ID() router.AgentID {
	return router.AgentCulturalDietitian
}

// Run implements Agent. Food facts are looked up for the classified food items when present,
// otherwise for the names mentioned in the question.
func (a *CulturalDietitian) Run(ctx context.Context, in Input, out stream.Sink) error {
	items := in.FoodItems
	if len(items) == 0 {
		items = terms(in.Question())
	}
	foods := a.lookupFacts(ctx, items, knowledge.DomainFood)

	var g Grounding
	g.Cite(foods)
	if in.Patient != nil {
		g.Cite(a.lookupFacts(ctx, in.Patient.ConditionNames(), knowledge.DomainClinicalGuideline))
	}
	if err := out.Send(g.Status()); err != nil {
		return err
	}

	role := "You are a dietitian who frames advice around the patient's food culture."
	if in.Patient != nil && in.Patient.Profile.Ethnicity != "" {
		role += fmt.Sprintf(" The patient identifies as %s; suggest swaps within that cuisine.", in.Patient.Profile.Ethnicity)
	}
	return a.generate(ctx, prompt{
		role:      role,
		in:        in,
		grounding: g,
		analysis:  dietAnalysis(in.FoodItems, foods, g),
		rules: []string{
			"Use nutritional facts only from the reference material; if a food is not covered, say you have no data for it.",
			"Suggest portion and pairing changes rather than forbidding foods.",
		},
	}, out)
}

func dietAnalysis(items []string, foods []knowledge.Fact, g Grounding) string {
	var b strings.Builder
	if len(items) > 0 {
		fmt.Fprintf(&b, "Foods identified: %s.\n", strings.Join(items, ", "))
	}
	if len(foods) == 0 {
		b.WriteString("I don't have nutritional data for this meal yet. In general, pairing starches with vegetables and protein and keeping portions moderate helps keep glucose steady.")
		return b.String()
	}
	b.WriteString("Nutrition notes:\n")
	for _, line := range g.Lines[:len(foods)] {
		b.WriteString("- " + line + "\n")
	}
	return strings.TrimSpace(b.String())
}
