package stream

import (
	"context"
	"errors"
	"strings"

	"github.com/benvon/health-chat/internal/models"
	"go.uber.org/zap"
)

// State is the lifecycle state of the current turn
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Status map keys
const (
	StatusAgent   = "Agent"
	StatusSources = "Sources"
	StatusError   = "Error"
)

// Subscriber opens the event stream for one turn. Cancelling ctx must close the stream and
// eventually close the returned channel.
type Subscriber interface {
	Subscribe(ctx context.Context, messages []models.Message) (<-chan Event, error)
}

// Snapshot is a copy of the session state
type Snapshot struct {
	State    State
	Messages []models.Message
	Status   map[string]string
	Err      string
	// Canceled is set when the turn ended because the caller stopped listening
	Canceled bool
	// Turn counts submitted turns
	Turn int
}

// Listener observes every event applied to the session, after it was applied
type Listener func(e Event, snap Snapshot)

// ErrSessionClosed is returned by calls on a closed session
var ErrSessionClosed = errors.New("session closed")

// ErrEmptyMessage is returned by Submit for blank input
var ErrEmptyMessage = errors.New("message is empty")

// Session is a single conversation driven by a private event loop. All state lives in the
// loop goroutine; callers interact through commands, so two turns never interleave.
type Session struct {
	sub      Subscriber
	logger   *zap.Logger
	listener Listener
	history  []models.Message

	cmds    chan func(*loopState)
	closed  chan struct{}
	stopped chan struct{}
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithSessionLogger sets the session logger
func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithListener registers a callback for applied events. It runs on the session loop and
// must not call back into the session.
func WithListener(l Listener) SessionOption {
	return func(s *Session) {
		s.listener = l
	}
}

// WithHistory seeds the conversation with earlier messages
func WithHistory(messages []models.Message) SessionOption {
	return func(s *Session) {
		s.history = append([]models.Message(nil), messages...)
	}
}

type loopState struct {
	state    State
	messages []models.Message
	status   map[string]string
	err      string
	canceled bool
	turn     int

	events   <-chan Event
	cancel   context.CancelFunc
	turnDone chan struct{}
}

// NewSession starts a session backed by sub. Close releases it.
func NewSession(sub Subscriber, opts ...SessionOption) *Session {
	s := &Session{
		sub:     sub,
		logger:  zap.NewNop(),
		cmds:    make(chan func(*loopState), 1),
		closed:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.stopped)

	ls := &loopState{messages: s.history, status: map[string]string{}, turnDone: closedChan()}
	for {
		select {
		case <-s.closed:
			s.teardown(ls)
			return
		case cmd := <-s.cmds:
			cmd(ls)
		case e, ok := <-ls.events:
			if !ok {
				s.apply(ls, ErrorEvent{Message: ErrIncompleteStream.Error()})
				continue
			}
			s.apply(ls, e)
		}
	}
}

// do runs fn on the loop and waits for it
func (s *Session) do(fn func(*loopState)) error {
	done := make(chan struct{})
	select {
	case s.cmds <- func(ls *loopState) { fn(ls); close(done) }:
	case <-s.closed:
		return ErrSessionClosed
	}
	select {
	case <-done:
		return nil
	case <-s.stopped:
		return ErrSessionClosed
	}
}

// Submit starts a new turn with content as the user message. A turn still streaming is
// torn down first and its subscription fully drained before the new one opens. The turn's
// subscription is bound to ctx.
// A subscription that cannot be opened moves the session to StateError and the error is
// returned.
func (s *Session) Submit(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	var subErr error
	err := s.do(func(ls *loopState) {
		if ls.state == StateStreaming {
			s.logger.Debug("previous_turn_torn_down", zap.Int("turn", ls.turn))
			s.teardown(ls)
			s.finish(ls, StateDone)
		}

		ls.turn++
		ls.messages = append(ls.messages, models.Message{Role: models.RoleUser, Content: content})
		ls.status = map[string]string{}
		ls.err = ""
		ls.canceled = false
		ls.turnDone = make(chan struct{})

		turnCtx, cancel := context.WithCancel(ctx)
		history := append([]models.Message(nil), ls.messages...)
		events, err := s.sub.Subscribe(turnCtx, history)
		if err != nil {
			cancel()
			subErr = err
			ls.err = err.Error()
			ls.status[StatusError] = ls.err
			s.finish(ls, StateError)
			return
		}
		ls.events = events
		ls.cancel = cancel
		ls.state = StateStreaming
	})
	if err != nil {
		return err
	}
	return subErr
}

// Cancel stops listening to the current turn. Partial assistant text is kept and the
// turn is marked done and canceled. The producer is not signalled beyond the connection
// being closed.
func (s *Session) Cancel() error {
	return s.do(func(ls *loopState) {
		if ls.state != StateStreaming {
			return
		}
		s.teardown(ls)
		s.finish(ls, StateDone)
		ls.canceled = true
	})
}

// Wait blocks until the current turn leaves StateStreaming and returns the final snapshot
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	var done chan struct{}
	if err := s.do(func(ls *loopState) { done = ls.turnDone }); err != nil {
		return Snapshot{}, err
	}
	select {
	case <-done:
		return s.Snapshot()
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-s.stopped:
		return Snapshot{}, ErrSessionClosed
	}
}

// Snapshot returns a copy of the session state
func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.do(func(ls *loopState) { snap = ls.snapshot() })
	return snap, err
}

// Close tears down any active subscription and stops the loop
func (s *Session) Close() {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	<-s.stopped
}

func (s *Session) apply(ls *loopState, e Event) {
	if ls.state != StateStreaming {
		return
	}

	switch ev := e.(type) {
	case TokensEvent:
		if n := len(ls.messages); n > 0 && ls.messages[n-1].Role == models.RoleAssistant {
			ls.messages[n-1].Content += ev.Text
		} else {
			ls.messages = append(ls.messages, models.Message{Role: models.RoleAssistant, Content: ev.Text})
		}
	case StatusEvent:
		switch ev.Stage {
		case StageRouting:
			ls.status[StatusAgent] = ev.Agent
		case StageRAG:
			ls.status[StatusSources] = strings.Join(ev.Sources, ", ")
		}
	case DoneEvent:
		ls.status = map[string]string{}
		s.release(ls)
		s.finish(ls, StateDone)
	case ErrorEvent:
		ls.err = ev.Message
		ls.status[StatusError] = ev.Message
		s.release(ls)
		s.finish(ls, StateError)
		s.logger.Warn("turn_failed", zap.Int("turn", ls.turn), zap.String("error", ev.Message))
	}

	if s.listener != nil {
		s.listener(e, ls.snapshot())
	}
}

// teardown cancels the subscription and drains its channel until the producer side has
// closed it, so no event of the old turn can reach a later one
func (s *Session) teardown(ls *loopState) {
	if ls.cancel == nil {
		return
	}
	ls.cancel()
	for range ls.events {
	}
	ls.events = nil
	ls.cancel = nil
}

// release stops a subscription that already delivered its terminal event
func (s *Session) release(ls *loopState) {
	s.teardown(ls)
}

func (s *Session) finish(ls *loopState, state State) {
	ls.state = state
	select {
	case <-ls.turnDone:
	default:
		close(ls.turnDone)
	}
}

func (ls *loopState) snapshot() Snapshot {
	status := make(map[string]string, len(ls.status))
	for k, v := range ls.status {
		status[k] = v
	}
	return Snapshot{
		State:    ls.state,
		Messages: append([]models.Message(nil), ls.messages...),
		Status:   status,
		Err:      ls.err,
		Canceled: ls.canceled,
		Turn:     ls.turn,
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
