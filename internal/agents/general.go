package agents

import (
	"context"

	"github.com/benvon/health-chat/internal/router"
	"github.com/benvon/health-chat/internal/stream"
)

const generalAnalysis = "I'm here to help with your diabetes management. Ask me about your glucose logs, meals, activity or medications."

// General answers without specialised grounding
type General struct {
	*base
}

// ID implements Agent
func (a *General) ID() router.AgentID {
	return router.AgentGeneral
}

// Run implements Agent
func (a *General) Run(ctx context.Context, in Input, out stream.Sink) error {
	return a.generate(ctx, prompt{
		role: "Help with questions about glucose logs, meals, activity and general diabetes management.",
		in:   in,
		rules: []string{
			"Do not give medication or dosing advice; suggest asking about it directly or contacting a healthcare provider.",
		},
		analysis: generalAnalysis,
	}, out)
}
