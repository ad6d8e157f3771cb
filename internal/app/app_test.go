package app

import (
	"context"
	"testing"
	"time"

	"github.com/benvon/health-chat/internal/cache"
	"github.com/benvon/health-chat/internal/config"
	"github.com/benvon/health-chat/internal/knowledge"
	"go.uber.org/zap"
)

func TestNewGenerator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      config.Config
		wantErr  bool
		wantName string
	}{
		{name: "openai", cfg: config.Config{AIProvider: "openai", OpenAIKey: "sk-test"}, wantName: "openai"},
		{name: "openai without key degrades", cfg: config.Config{AIProvider: "openai"}, wantErr: true, wantName: "offline"},
		{name: "gemini without key degrades", cfg: config.Config{AIProvider: "gemini"}, wantErr: true, wantName: "offline"},
		{name: "unknown provider degrades", cfg: config.Config{AIProvider: "llama"}, wantErr: true, wantName: "offline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			gen, err := NewGenerator(&cfg, zap.NewNop(), false)
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if gen == nil {
				t.Fatal("Expected a generator even on error")
			}
			if gen.Name() != tt.wantName {
				t.Errorf("Expected %s generator, got %s", tt.wantName, gen.Name())
			}
		})
	}
}

func TestNewKnowledge(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{KnowledgeBackends: []string{config.KnowledgeStatic}, KnowledgeCacheTTL: time.Minute}
	lookup, err := NewKnowledge(context.Background(), cfg, nil, cache.NewMemory(), zap.NewNop())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := lookup.(*knowledge.Cached); !ok {
		t.Errorf("Expected cached lookup, got %T", lookup)
	}
	facts, err := lookup.Lookup(context.Background(), []string{"metformin"}, knowledge.DomainDrugInteraction)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(facts) == 0 {
		t.Error("Expected the built-in catalog to know metformin")
	}

	uncached, err := NewKnowledge(context.Background(), cfg, nil, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := uncached.(*knowledge.Multi); !ok {
		t.Errorf("Expected plain fan-out without a store, got %T", uncached)
	}

	pg := &config.Config{KnowledgeBackends: []string{config.KnowledgePostgres}}
	if _, err := NewKnowledge(context.Background(), pg, nil, nil, zap.NewNop()); err == nil {
		t.Error("Expected postgres backend without a database to fail")
	}
}
