package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/health-chat/internal/analytics"
	"github.com/benvon/health-chat/internal/knowledge"
	"github.com/benvon/health-chat/internal/models"
	"github.com/benvon/health-chat/internal/router"
	"github.com/benvon/health-chat/internal/stream"
)

const maxLifestyleInsights = 5

var categoryKeywords = map[models.InsightCategory][]string{
	models.InsightCategoryGlucose:    {"glucose", "sugar", "blood sugar", "reading", "readings", "a1c", "spike", "spikes", "hypo", "low", "high", "range"},
	models.InsightCategoryActivity:   {"activity", "exercise", "walk", "walking", "steps", "workout", "active", "run", "running"},
	models.InsightCategoryWeight:     {"weight", "bmi", "kg", "lbs", "pounds"},
	models.InsightCategoryMedication: {"medication", "medications", "meds", "pill", "pills", "adherence", "dose", "doses", "taken", "took"},
}

// LifestyleAnalyst answers questions about the patient's own logged data
type LifestyleAnalyst struct {
	*base
}

// ID implements Agent
func (a *LifestyleAnalyst) ID() router.AgentID {
	return router.AgentLifestyleAnalyst
}

// Run implements Agent. The insights it used are listed as rag sources.
func (a *LifestyleAnalyst) Run(ctx context.Context, in Input, out stream.Sink) error {
	insights := relevantInsights(in.Report.Insights(), in.Question())

	var g Grounding
	g.CiteInsights(insights)
	if in.Patient != nil {
		g.Cite(a.lookupFacts(ctx, in.Patient.ConditionNames(), knowledge.DomainClinicalGuideline))
	}
	if err := out.Send(g.Status()); err != nil {
		return err
	}

	return a.generate(ctx, prompt{
		role:      "You analyse the patient's own glucose, activity, weight and medication logs.",
		in:        in,
		grounding: g,
		analysis:  lifestyleAnalysis(in, insights),
		rules: []string{
			"Only state numbers that appear in the patient information or reference material.",
			"When a metric reports insufficient data, say so instead of guessing.",
			"Mention which insights you used.",
		},
	}, out)
}

// relevantInsights keeps the insights whose category the question is about, falling back
// to all insights, then keeps the highest priority ones
func relevantInsights(insights []models.Insight, question string) []models.Insight {
	asked := make(map[models.InsightCategory]bool)
	for category, keywords := range categoryKeywords {
		if len(mentions(question, keywords)) > 0 {
			asked[category] = true
		}
	}

	selected := insights
	if len(asked) > 0 {
		var filtered []models.Insight
		for _, in := range insights {
			if asked[in.Category] {
				filtered = append(filtered, in)
			}
		}
		if len(filtered) > 0 {
			selected = filtered
		}
	}
	return analytics.SelectTopInsights(selected, maxLifestyleInsights)
}

func lifestyleAnalysis(in Input, insights []models.Insight) string {
	if len(insights) == 0 {
		days := in.Report.WindowDays
		return fmt.Sprintf("I don't have enough logged data from the last %d days to spot patterns yet. "+
			"Logging glucose at least 4 times, plus activity, meals and medication doses, will let me give you a proper analysis.", days)
	}

	var b strings.Builder
	b.WriteString("Here is what your recent logs show:\n")
	for i, ins := range insights {
		fmt.Fprintf(&b, "- %s: %s [%d]\n", ins.Title, ins.Detail, i+1)
	}
	if !in.Report.TimeInRange.Ok() {
		b.WriteString("Time in range needs more readings before I can judge it.\n")
	}
	if !in.Report.Trend.Ok() {
		b.WriteString("There are not enough readings yet to call a trend.\n")
	}
	return strings.TrimSpace(b.String())
}
