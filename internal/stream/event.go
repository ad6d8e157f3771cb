// Package stream carries one chat turn from the producer to the client as an ordered
// sequence of JSON frames, and rebuilds session state from those frames on the client.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType discriminates frames on the wire
type EventType string

const (
	EventTokens EventType = "tokens"
	EventStatus EventType = "status"
	EventDone   EventType = "done"
	EventError  EventType = "error"
)

// Stage names the pipeline stage a status event describes
type Stage string

const (
	StageRouting Stage = "routing"
	StageRAG     Stage = "rag"
)

// MaxSources caps the number of source labels carried by a rag status
const MaxSources = 6

// Event is one frame of a turn. The concrete types are TokensEvent, StatusEvent, DoneEvent
// and ErrorEvent.
type Event interface {
	Type() EventType
}

// TokensEvent carries a chunk of assistant text
type TokensEvent struct {
	Text string
}

// StatusEvent reports pipeline progress. Agent is set for the routing stage; Sources and
// RAGChars for the rag stage.
type StatusEvent struct {
	Stage    Stage
	Agent    string
	Sources  []string
	RAGChars int
}

// DoneEvent terminates a turn successfully
type DoneEvent struct{}

// ErrorEvent terminates a turn with a failure message
type ErrorEvent struct {
	Message string
}

func (TokensEvent) Type() EventType { return EventTokens }
func (StatusEvent) Type() EventType { return EventStatus }
func (DoneEvent) Type() EventType   { return EventDone }
func (ErrorEvent) Type() EventType  { return EventError }

// Terminal reports whether e closes a turn
func Terminal(e Event) bool {
	t := e.Type()
	return t == EventDone || t == EventError
}

// RoutingStatus builds the status emitted once the router has picked an agent
func RoutingStatus(agent string) StatusEvent {
	return StatusEvent{Stage: StageRouting, Agent: agent}
}

// RAGStatus builds the status listing the grounding sources of an answer. Sources beyond
// MaxSources are dropped.
func RAGStatus(sources []string, ragChars int) StatusEvent {
	if len(sources) > MaxSources {
		sources = sources[:MaxSources]
	}
	out := make([]string, len(sources))
	copy(out, sources)
	return StatusEvent{Stage: StageRAG, Sources: out, RAGChars: ragChars}
}

// ErrMalformedFrame is returned by Decode for frames that cannot be interpreted.
// Callers log and drop such frames; they never end the stream.
var ErrMalformedFrame = errors.New("malformed frame")

// ErrUnknownStage is returned by Decode for status frames with a stage this version does
// not know. Callers ignore such frames.
var ErrUnknownStage = errors.New("unknown status stage")

type frame struct {
	Type  EventType       `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

type routingValue struct {
	Stage Stage  `json:"stage"`
	Agent string `json:"agent"`
}

type ragValue struct {
	Stage    Stage    `json:"stage"`
	Sources  []string `json:"sources"`
	RAGChars int      `json:"rag_chars"`
}

// Encode renders e as a {type, value} JSON object
func Encode(e Event) ([]byte, error) {
	var value any
	switch ev := e.(type) {
	case TokensEvent:
		value = ev.Text
	case StatusEvent:
		switch ev.Stage {
		case StageRouting:
			value = routingValue{Stage: ev.Stage, Agent: ev.Agent}
		case StageRAG:
			sources := ev.Sources
			if sources == nil {
				sources = []string{}
			}
			value = ragValue{Stage: ev.Stage, Sources: sources, RAGChars: ev.RAGChars}
		default:
			return nil, fmt.Errorf("cannot encode status stage %q: %w", ev.Stage, ErrUnknownStage)
		}
	case DoneEvent:
	case ErrorEvent:
		value = ev.Message
	default:
		return nil, fmt.Errorf("cannot encode event %T", e)
	}

	f := frame{Type: e.Type()}
	if value != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s value: %w", e.Type(), err)
		}
		f.Value = raw
	}
	return json.Marshal(f)
}

// Decode parses one frame. Unparseable frames yield ErrMalformedFrame and status frames
// with an unrecognised stage yield ErrUnknownStage.
func Decode(data []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch f.Type {
	case EventTokens:
		var text string
		if err := json.Unmarshal(f.Value, &text); err != nil {
			return nil, fmt.Errorf("%w: tokens value: %v", ErrMalformedFrame, err)
		}
		return TokensEvent{Text: text}, nil
	case EventStatus:
		return decodeStatus(f.Value)
	case EventDone:
		return DoneEvent{}, nil
	case EventError:
		var msg string
		if len(f.Value) > 0 {
			if err := json.Unmarshal(f.Value, &msg); err != nil {
				// Producers may send structured errors; keep the raw text
				msg = string(f.Value)
			}
		}
		return ErrorEvent{Message: msg}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, f.Type)
	}
}

func decodeStatus(raw json.RawMessage) (Event, error) {
	var head struct {
		Stage Stage `json:"stage"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: status value: %v", ErrMalformedFrame, err)
	}

	switch head.Stage {
	case StageRouting:
		var v routingValue
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: routing status: %v", ErrMalformedFrame, err)
		}
		return RoutingStatus(v.Agent), nil
	case StageRAG:
		var v ragValue
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: rag status: %v", ErrMalformedFrame, err)
		}
		return RAGStatus(v.Sources, v.RAGChars), nil
	case "":
		return nil, fmt.Errorf("%w: status without stage", ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, head.Stage)
	}
}
