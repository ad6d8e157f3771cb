package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benvon/health-chat/internal/models"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSSEWriter(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)
	if err := w.Send(RoutingStatus("general")); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := w.Ping(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := w.Send(DoneEvent{}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	headers := map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	}
	for k, v := range headers {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("Expected header %s=%s, got %s", k, v, got)
		}
	}

	want := "data: {\"type\":\"status\",\"value\":{\"stage\":\"routing\",\"agent\":\"general\"}}\n\n: ping\n\ndata: {\"type\":\"done\"}\n\n"
	if rec.Body.String() != want {
		t.Errorf("Expected body %q, got %q", want, rec.Body.String())
	}
	if !rec.Flushed {
		t.Error("Expected writer to flush")
	}
}

func sseServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatal("Timed out waiting for events")
		}
	}
}

func TestClient_Subscribe(t *testing.T) {
	t.Parallel()

	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 1 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		sse := NewSSEWriter(w)
		_ = sse.Send(RoutingStatus("lifestyle_analyst"))
		_, _ = fmt.Fprint(w, "data: {not json}\n\n")
		_, _ = fmt.Fprint(w, "data: {\"type\":\"status\",\"value\":{\"stage\":\"thinking\"}}\n\n")
		_ = sse.Ping()
		_ = sse.Send(TokensEvent{Text: "Your average "})
		_ = sse.Send(TokensEvent{Text: "is 120."})
		_ = sse.Send(DoneEvent{})
		_ = sse.Send(TokensEvent{Text: "after done"})
	})

	client := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithBearerToken("secret"))
	events, err := client.Subscribe(context.Background(), []models.Message{{Role: models.RoleUser, Content: "average?"}})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got := collect(t, events)
	want := []Event{
		RoutingStatus("lifestyle_analyst"),
		TokensEvent{Text: "Your average "},
		TokensEvent{Text: "is 120."},
		DoneEvent{},
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d events, got %d: %#v", len(want), len(got), got)
	}
	for i := range want {
		if fmt.Sprintf("%#v", got[i]) != fmt.Sprintf("%#v", want[i]) {
			t.Errorf("Expected event %d to be %#v, got %#v", i, want[i], got[i])
		}
	}
}

func TestClient_OversizedFrameDropped(t *testing.T) {
	t.Parallel()

	big := strings.Repeat("x", 2<<20)
	half := strings.Repeat("y", maxFrameSize/2+1)
	tests := []struct {
		name  string
		frame string
	}{
		{name: "single long line", frame: "data: {\"type\":\"tokens\",\"value\":\"" + big + "\"}\n\n"},
		{name: "data lines over the limit", frame: "data: " + half + "\ndata: " + half + "\ndata: " + half + "\n\n"},
		{name: "long comment", frame: ": " + big + "\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
				sse := NewSSEWriter(w)
				_, _ = fmt.Fprint(w, tt.frame)
				_ = sse.Send(TokensEvent{Text: "hello"})
				_ = sse.Send(DoneEvent{})
			})

			core, logs := observer.New(zapcore.WarnLevel)
			client := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithClientLogger(zap.New(core)))
			events, err := client.Subscribe(context.Background(), nil)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			got := collect(t, events)
			if len(got) != 2 || got[0] != (TokensEvent{Text: "hello"}) || got[1] != (DoneEvent{}) {
				t.Fatalf("Expected tokens then done, got %#v", got)
			}
			if logs.FilterMessage("malformed_frame_dropped").Len() != 1 {
				t.Errorf("Expected one malformed_frame_dropped warning, got %d", logs.FilterMessage("malformed_frame_dropped").Len())
			}
		})
	}
}

func TestClient_SubscribeRejected(t *testing.T) {
	t.Parallel()

	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := NewClient(srv.URL, WithHTTPClient(srv.Client())).Subscribe(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("Expected status error, got %v", err)
	}
}

func TestClient_IncompleteStream(t *testing.T) {
	t.Parallel()

	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		sse := NewSSEWriter(w)
		_ = sse.Send(TokensEvent{Text: "partial"})
	})

	events, err := NewClient(srv.URL, WithHTTPClient(srv.Client())).Subscribe(context.Background(), nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	got := collect(t, events)
	if len(got) != 2 {
		t.Fatalf("Expected tokens and a final error, got %#v", got)
	}
	last, ok := got[1].(ErrorEvent)
	if !ok || !strings.Contains(last.Message, ErrIncompleteStream.Error()) {
		t.Errorf("Expected incomplete stream error, got %#v", got[1])
	}
}

func TestClient_CancelClosesStream(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		sse := NewSSEWriter(w)
		_ = sse.Send(TokensEvent{Text: "first"})
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := NewClient(srv.URL, WithHTTPClient(srv.Client())).Subscribe(ctx, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if e := <-events; e != (TokensEvent{Text: "first"}) {
		t.Fatalf("Expected first tokens, got %#v", e)
	}
	cancel()

	for e := range events {
		if _, ok := e.(ErrorEvent); ok {
			t.Errorf("Expected cancellation to close quietly, got %#v", e)
		}
	}
}
