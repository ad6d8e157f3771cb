package stream

import (
	"errors"
	"reflect"
	"testing"
)

func TestEncode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{name: "tokens", event: TokensEvent{Text: "Hello"}, want: `{"type":"tokens","value":"Hello"}`},
		{name: "routing", event: RoutingStatus("lifestyle_analyst"), want: `{"type":"status","value":{"stage":"routing","agent":"lifestyle_analyst"}}`},
		{name: "rag", event: RAGStatus([]string{"ADA Standards of Care"}, 120), want: `{"type":"status","value":{"stage":"rag","sources":["ADA Standards of Care"],"rag_chars":120}}`},
		{name: "rag without sources", event: RAGStatus(nil, 0), want: `{"type":"status","value":{"stage":"rag","sources":[],"rag_chars":0}}`},
		{name: "done", event: DoneEvent{}, want: `{"type":"done"}`},
		{name: "error", event: ErrorEvent{Message: "provider unavailable"}, want: `{"type":"error","value":"provider unavailable"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Encode(tt.event)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
			back, err := Decode(got)
			if err != nil {
				t.Fatalf("Expected frame to decode, got %v", err)
			}
			if !reflect.DeepEqual(back, tt.event) {
				t.Errorf("Expected %#v, got %#v", tt.event, back)
			}
		})
	}
}

func TestEncode_UnknownStage(t *testing.T) {
	t.Parallel()

	if _, err := Encode(StatusEvent{Stage: "thinking"}); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("Expected ErrUnknownStage, got %v", err)
	}
}

func TestRAGStatus_CapsSources(t *testing.T) {
	t.Parallel()

	sources := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	status := RAGStatus(sources, 10)
	if len(status.Sources) != MaxSources {
		t.Errorf("Expected %d sources, got %d", MaxSources, len(status.Sources))
	}
	sources[0] = "changed"
	if status.Sources[0] != "a" {
		t.Error("Expected sources to be copied")
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		frame   string
		want    Event
		wantErr error
	}{
		{name: "done without value", frame: `{"type":"done"}`, want: DoneEvent{}},
		{name: "error with object value", frame: `{"type":"error","value":{"code":500}}`, want: ErrorEvent{Message: `{"code":500}`}},
		{name: "not json", frame: `data: nope`, wantErr: ErrMalformedFrame},
		{name: "missing type", frame: `{"value":"x"}`, wantErr: ErrMalformedFrame},
		{name: "unknown type", frame: `{"type":"ping"}`, wantErr: ErrMalformedFrame},
		{name: "tokens not a string", frame: `{"type":"tokens","value":42}`, wantErr: ErrMalformedFrame},
		{name: "status without stage", frame: `{"type":"status","value":{}}`, wantErr: ErrMalformedFrame},
		{name: "unknown stage", frame: `{"type":"status","value":{"stage":"thinking","step":2}}`, wantErr: ErrUnknownStage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Decode([]byte(tt.frame))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %#v, got %#v", tt.want, got)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	if !Terminal(DoneEvent{}) || !Terminal(ErrorEvent{}) {
		t.Error("Expected done and error to be terminal")
	}
	if Terminal(TokensEvent{}) || Terminal(RoutingStatus("general")) {
		t.Error("Expected tokens and status to be non-terminal")
	}
}
