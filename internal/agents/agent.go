// Package agents holds the responding capabilities a turn is dispatched to.
//
// Every agent gathers its grounding (analytics, knowledge facts), emits a rag status listing
// the sources it used, and only then streams tokens from the text generator. Agents never
// invent facts: when grounding is missing they say so in the streamed answer.
package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/health-chat/internal/analytics"
	"github.com/benvon/health-chat/internal/knowledge"
	"github.com/benvon/health-chat/internal/models"
	"github.com/benvon/health-chat/internal/records"
	"github.com/benvon/health-chat/internal/router"
	"github.com/benvon/health-chat/internal/services/ai"
	"github.com/benvon/health-chat/internal/stream"
	"go.uber.org/zap"
)

// DefaultMaxTokens bounds the length of a generated answer
const DefaultMaxTokens = 800

// Input is everything an agent may draw on for one turn
type Input struct {
	Patient  *models.PatientContext
	Report   analytics.Report
	Messages []models.Message
	// FoodItems is the upstream classifier output for a described or photographed meal
	FoodItems []string
	Decision  router.Decision
	Now       time.Time
}

// Question returns the latest user message
func (in Input) Question() string {
	return models.LastUserMessage(in.Messages)
}

// Agent produces the answer for one turn. Run emits zero or more status events followed by
// tokens; it does not emit the terminal event.
type Agent interface {
	ID() router.AgentID
	Run(ctx context.Context, in Input, out stream.Sink) error
}

// Grounding is the retrieved material an answer is based on
type Grounding struct {
	// Lines are the cited grounding statements, already numbered
	Lines   []string
	Sources []string
}

// Text joins the grounding lines
func (g Grounding) Text() string {
	return strings.Join(g.Lines, "\n")
}

// Status builds the rag status event for this grounding
func (g Grounding) Status() stream.StatusEvent {
	return stream.RAGStatus(g.Sources, len(g.Text()))
}

// Cite numbers facts as "[n] text (Source: label)" continuing after existing lines
func (g *Grounding) Cite(facts []knowledge.Fact) {
	for _, f := range facts {
		g.Lines = append(g.Lines, fmt.Sprintf("[%d] %s (Source: %s)", len(g.Lines)+1, f.Text, f.Source))
		g.addSource(f.Source)
	}
}

// CiteInsights numbers insights the same way, citing each insight's source label
func (g *Grounding) CiteInsights(insights []models.Insight) {
	for _, in := range insights {
		g.Lines = append(g.Lines, fmt.Sprintf("[%d] %s: %s (Source: %s)", len(g.Lines)+1, in.Title, in.Detail, in.Source))
		g.addSource(in.Source)
	}
}

func (g *Grounding) addSource(source string) {
	for _, s := range g.Sources {
		if s == source {
			return
		}
	}
	g.Sources = append(g.Sources, source)
}

// base carries what every agent needs to generate text
type base struct {
	generator ai.TextGenerator
	lookup    knowledge.Lookup
	logger    *zap.Logger
	maxTokens int
}

// Option configures an agent Set
type Option func(*base)

// WithLogger sets the logger shared by the agents
func WithLogger(logger *zap.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMaxTokens sets the generation limit
func WithMaxTokens(n int) Option {
	return func(b *base) {
		if n > 0 {
			b.maxTokens = n
		}
	}
}

// prompt describes one generation call
type prompt struct {
	role      string
	in        Input
	grounding Grounding
	analysis  string
	rules     []string
}

const assistantPreamble = "You are a helpful diabetes management assistant."

func (p prompt) system() string {
	parts := []string{assistantPreamble + " " + p.role}
	if !p.in.Now.IsZero() {
		parts = append(parts, fmt.Sprintf("Current date and time: %s.", p.in.Now.Format("Monday, 2 January 2006 15:04 MST")))
	}
	if p.in.Patient != nil {
		parts = append(parts, "Patient information:\n"+records.Summary(p.in.Patient, p.in.Report))
	}
	if len(p.grounding.Lines) > 0 {
		parts = append(parts, "Reference material (cite as [n] with the source name):\n"+p.grounding.Text())
	}
	if p.analysis != "" {
		parts = append(parts, "Agent analysis:\n"+p.analysis+"\n\nRespond naturally and conversationally based on this analysis.")
	}
	if len(p.rules) > 0 {
		parts = append(parts, "Rules:\n- "+strings.Join(p.rules, "\n- "))
	}
	return strings.Join(parts, "\n\n")
}

func (b *base) generate(ctx context.Context, p prompt, out stream.Sink) error {
	req := ai.CompletionRequest{
		System:    p.system(),
		Messages:  chatMessages(p.in.Messages),
		Draft:     p.analysis,
		MaxTokens: b.maxTokens,
	}
	err := b.generator.Stream(ctx, req, func(tok string) error {
		return out.Send(stream.TokensEvent{Text: tok})
	})
	if err != nil {
		return fmt.Errorf("failed to generate answer with %s: %w", b.generator.Name(), err)
	}
	return nil
}

// say streams a fixed line ahead of generation
func say(out stream.Sink, text string) error {
	return out.Send(stream.TokensEvent{Text: text + "\n\n"})
}

// lookupFacts queries the knowledge backend. A failed lookup is logged and treated as empty
// so the answer degrades to an honest "no data" instead of failing the turn.
func (b *base) lookupFacts(ctx context.Context, entities []string, domain knowledge.Domain) []knowledge.Fact {
	if b.lookup == nil || len(entities) == 0 {
		return nil
	}
	facts, err := b.lookup.Lookup(ctx, entities, domain)
	if err != nil {
		if ctx.Err() == nil {
			b.logger.Warn("knowledge_lookup_failed",
				zap.String("domain", string(domain)),
				zap.Int("entities", len(entities)),
				zap.Error(err))
		}
		return nil
	}
	return facts
}

// chatMessages converts the history for the generator. System messages from the client are
// dropped; the agent supplies its own system prompt.
func chatMessages(messages []models.Message) []ai.ChatMessage {
	out := make([]ai.ChatMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleUser:
			out = append(out, ai.ChatMessage{Role: ai.RoleUser, Content: m.Content})
		case models.RoleAssistant:
			out = append(out, ai.ChatMessage{Role: ai.RoleAssistant, Content: m.Content})
		}
	}
	return out
}

// Set holds one agent per identifier
type Set struct {
	lifestyle *LifestyleAnalyst
	safety    *ClinicalSafety
	dietitian *CulturalDietitian
	general   *General
}

// NewSet builds the four agents around a shared generator and knowledge lookup
func NewSet(generator ai.TextGenerator, lookup knowledge.Lookup, opts ...Option) *Set {
	b := &base{
		generator: generator,
		lookup:    lookup,
		logger:    zap.NewNop(),
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(b)
	}
	return &Set{
		lifestyle: &LifestyleAnalyst{base: b},
		safety:    &ClinicalSafety{base: b},
		dietitian: &CulturalDietitian{base: b},
		general:   &General{base: b},
	}
}

// For returns the agent selected by a routing decision. Unknown identifiers and fallback
// decisions get the general agent.
func (s *Set) For(d router.Decision) Agent {
	if d.Fallback {
		return s.general
	}
	switch d.Agent {
	case router.AgentLifestyleAnalyst:
		return s.lifestyle
	case router.AgentClinicalSafety:
		return s.safety
	case router.AgentCulturalDietitian:
		return s.dietitian
	default:
		return s.general
	}
}
