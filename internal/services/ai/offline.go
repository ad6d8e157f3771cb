package ai

import (
	"context"
	"strings"
	"time"
)

const offlineNoDraft = "I can only summarize your logged data right now. Please try again later for a full answer."

// OfflineProvider streams the request's deterministic draft word by word. It serves deployments
// without model credentials and keeps the pipeline testable end to end.
type OfflineProvider struct {
	delay time.Duration
}

// NewOfflineProvider creates an offline provider that pauses delay between tokens
func NewOfflineProvider(delay time.Duration) *OfflineProvider {
	return &OfflineProvider{delay: delay}
}

// Name implements TextGenerator
func (p *OfflineProvider) Name() string {
	return "offline"
}

// Stream implements TextGenerator
func (p *OfflineProvider) Stream(ctx context.Context, req CompletionRequest, onToken func(string) error) error {
	text := strings.TrimSpace(req.Draft)
	if text == "" {
		text = offlineNoDraft
	}
	for _, tok := range splitTokens(text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onToken(tok); err != nil {
			return err
		}
		if p.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.delay):
			}
		}
	}
	return nil
}

// splitTokens splits text into words, keeping the whitespace that follows each one
func splitTokens(text string) []string {
	var out []string
	start := 0
	inSpace := false
	for i, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t'
		if inSpace && !isSpace {
			out = append(out, text[start:i])
			start = i
		}
		inSpace = isSpace
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// RegisterOffline registers the offline provider with the registry
func RegisterOffline(registry *ProviderRegistry) {
	registry.Register("offline", func(config map[string]string) (TextGenerator, error) {
		var delay time.Duration
		if d, err := time.ParseDuration(config["token_delay"]); err == nil {
			delay = d
		}
		return NewOfflineProvider(delay), nil
	})
}
