package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemory_SetGetExpire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	if _, ok, _ := m.Get(ctx, "missing"); ok {
		t.Error("Expected miss for unknown key")
	}

	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := m.Set(ctx, "forever", []byte("f"), 0); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Errorf("Expected hit with v, got %q ok=%v err=%v", got, ok, err)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("Expected key to expire after its ttl")
	}
	if _, ok, _ := m.Get(ctx, "forever"); !ok {
		t.Error("Expected key without ttl to persist")
	}

	_ = m.Delete(ctx, "forever")
	if _, ok, _ := m.Get(ctx, "forever"); ok {
		t.Error("Expected deleted key to miss")
	}
}

func TestMemory_CopiesValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	buf := []byte("abc")
	_ = m.Set(ctx, "k", buf, 0)
	buf[0] = 'x'

	got, _, _ := m.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("Expected stored value to be isolated from caller, got %q", got)
	}
}
