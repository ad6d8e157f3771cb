// Package chat produces the server side of a conversational turn: it routes the message
// history to an agent and turns the agent's work into an ordered event stream.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/health-chat/internal/agents"
	"github.com/benvon/health-chat/internal/analytics"
	"github.com/benvon/health-chat/internal/logger"
	"github.com/benvon/health-chat/internal/models"
	"github.com/benvon/health-chat/internal/records"
	"github.com/benvon/health-chat/internal/router"
	"github.com/benvon/health-chat/internal/services/ai"
	"github.com/benvon/health-chat/internal/stream"
	"github.com/benvon/health-chat/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// User-facing error messages. Provider details stay in the logs.
const (
	msgBusy        = "The assistant is busy right now. Please try again in a moment."
	msgUnavailable = "The assistant is temporarily unavailable. Please try again later."
	msgRecords     = "I couldn't load your health records. Please try again."
	msgFailed      = "Something went wrong while answering. Please try again."
)

// TurnHook runs after a turn completed successfully
type TurnHook func(ctx context.Context, userID uuid.UUID)

// Producer runs turns: Router -> Agent -> events
type Producer struct {
	router     *router.Router
	agents     *agents.Set
	assembler  *records.Assembler
	registry   *Registry
	thresholds analytics.Thresholds
	onComplete TurnHook
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Producer
type Option func(*Producer)

// WithThresholds overrides the analytics thresholds
func WithThresholds(th analytics.Thresholds) Option {
	return func(p *Producer) { p.thresholds = th }
}

// WithRegistry shares an active-turn registry
func WithRegistry(r *Registry) Option {
	return func(p *Producer) {
		if r != nil {
			p.registry = r
		}
	}
}

// WithCompletionHook sets the hook run after each completed turn
func WithCompletionHook(hook TurnHook) Option {
	return func(p *Producer) { p.onComplete = hook }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Producer) { p.now = now }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Producer) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProducer creates a turn producer
func NewProducer(r *router.Router, set *agents.Set, assembler *records.Assembler, opts ...Option) *Producer {
	p := &Producer{
		router:     r,
		agents:     set,
		assembler:  assembler,
		registry:   NewRegistry(),
		thresholds: analytics.DefaultThresholds(),
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry returns the producer's active-turn registry
func (p *Producer) Registry() *Registry {
	return p.registry
}

// Run produces one turn into out. Events are sent in order: a routing status, the agent's
// statuses and tokens, then exactly one of done or error. When ctx is canceled (the client
// went away or a newer turn for the same user began) Run stops without a terminal event.
func (p *Producer) Run(ctx context.Context, userID uuid.UUID, req stream.ChatRequest, out stream.Sink) (err error) {
	ctx, release := p.registry.Begin(ctx, userID)
	defer release()

	ctx, span := telemetry.StartSpan(ctx, "chat.turn")
	defer func() { telemetry.End(span, err) }()

	turnID := uuid.NewString()
	ctx = ai.WithTurnID(ai.WithUserID(ctx, userID.String()), turnID)
	log := p.logger.With(
		zap.String("user_id", logger.SanitizeUserID(userID.String())),
		zap.String("turn_id", turnID),
		zap.String("request_id", ai.ExtractRequestID(ctx)),
	)
	started := p.now()

	decision := p.router.RouteMeal(req.Messages, req.FoodItems)
	log.Info("turn_started",
		zap.String("agent", string(decision.Agent)),
		zap.Float64("confidence", decision.Confidence),
		zap.String("matched", decision.Matched),
		zap.Bool("fallback", decision.Fallback),
		zap.Int("history_length", len(req.Messages)))
	log.Debug("turn_question", logger.Redacted("question", lastUserContent(req.Messages)))

	span.SetAttributes(
		attribute.String("agent", string(decision.Agent)),
		attribute.Bool("fallback", decision.Fallback))

	if err := out.Send(stream.RoutingStatus(decision.Diagnostic())); err != nil {
		return fmt.Errorf("failed to send routing status: %w", err)
	}

	if err := p.answer(ctx, userID, decision, req, out); err != nil {
		if ctx.Err() != nil {
			log.Info("turn_canceled", zap.Error(ctx.Err()))
			return ctx.Err()
		}
		var sendErr *sinkError
		if errors.As(err, &sendErr) {
			log.Warn("turn_stream_broken", zap.Error(err))
			return err
		}
		log.Error("turn_failed", zap.String("error", logger.SanitizeError(err)))
		if sendErr := out.Send(stream.ErrorEvent{Message: userMessage(err)}); sendErr != nil {
			return fmt.Errorf("failed to send error event: %w", sendErr)
		}
		return err
	}

	if err := out.Send(stream.DoneEvent{}); err != nil {
		return fmt.Errorf("failed to send done event: %w", err)
	}
	log.Info("turn_completed", zap.Duration("duration", p.now().Sub(started)))

	if p.onComplete != nil {
		p.onComplete(context.WithoutCancel(ctx), userID)
	}
	return nil
}

func (p *Producer) answer(ctx context.Context, userID uuid.UUID, decision router.Decision, req stream.ChatRequest, out stream.Sink) error {
	pc, err := p.assembler.Assemble(ctx, userID)
	if err != nil {
		return &recordsError{err: err}
	}
	now := p.now()
	report := analytics.Analyze(pc, now, p.thresholds)

	agent := p.agents.For(decision)
	return agent.Run(ctx, agents.Input{
		Patient:   pc,
		Report:    report,
		Messages:  req.Messages,
		FoodItems: req.FoodItems,
		Decision:  decision,
		Now:       now,
	}, &guardedSink{out: out})
}

type recordsError struct{ err error }

func (e *recordsError) Error() string { return "failed to assemble patient context: " + e.err.Error() }
func (e *recordsError) Unwrap() error { return e.err }

// sinkError marks a failure writing to the client, after which no further event can be sent
type sinkError struct{ err error }

func (e *sinkError) Error() string { return "failed to send event: " + e.err.Error() }
func (e *sinkError) Unwrap() error { return e.err }

type guardedSink struct {
	out stream.Sink
}

func (s *guardedSink) Send(e stream.Event) error {
	if err := s.out.Send(e); err != nil {
		return &sinkError{err: err}
	}
	return nil
}

func userMessage(err error) string {
	var recErr *recordsError
	switch {
	case errors.As(err, &recErr):
		return msgRecords
	case ai.IsQuotaError(err):
		return msgUnavailable
	case ai.IsRateLimitError(err):
		return msgBusy
	}
	return msgFailed
}

func lastUserContent(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
