package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/benvon/health-chat/internal/models"
	"go.uber.org/zap"
)

// Sink receives the events of one turn in order
type Sink interface {
	Send(e Event) error
}

// SSEWriter writes events as server-sent events. It is safe for concurrent use so a
// keep-alive ticker can share the connection with the producer.
type SSEWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

// NewSSEWriter sets the event-stream headers on w and returns a writer for it
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	return &SSEWriter{w: w, flusher: flusher}
}

// Send writes e as a single "data:" line followed by a blank line
func (s *SSEWriter) Send(e Event) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}
	return s.write("data: " + string(data) + "\n\n")
}

// Ping writes an SSE comment so intermediaries keep the connection open
func (s *SSEWriter) Ping() error {
	return s.write(": ping\n\n")
}

func (s *SSEWriter) write(chunk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.w, chunk); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// ChatRequest is the body of a chat turn request
type ChatRequest struct {
	Messages  []models.Message `json:"messages" validate:"required,min=1,max=100,dive"`
	FoodItems []string         `json:"food_items,omitempty" validate:"max=20,dive,max=100"`
}

// ErrIncompleteStream is reported when the connection ends before a terminal frame
var ErrIncompleteStream = errors.New("stream closed before completion")

// maxFrameSize bounds the data of a single SSE frame
const maxFrameSize = 1 << 20

// Client opens chat turn subscriptions against a server endpoint
type Client struct {
	endpoint   string
	httpClient *http.Client
	token      string
	logger     *zap.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for requests. An oauth2 client can be passed
// here to attach bearer credentials automatically.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBearerToken sets a static bearer credential
func WithBearerToken(token string) ClientOption {
	return func(cl *Client) {
		cl.token = token
	}
}

// WithClientLogger sets the logger used for dropped frames
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// NewClient creates a client for the chat stream endpoint
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe sends the message history and returns the turn's events. The channel is
// closed after a terminal event or when ctx is cancelled; cancelling ctx closes the
// connection. Malformed frames are logged and dropped. A connection that ends without a
// terminal frame yields a final ErrorEvent.
func (c *Client) Subscribe(ctx context.Context, messages []models.Message) (<-chan Event, error) {
	body, err := json.Marshal(ChatRequest{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("stream request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		c.read(ctx, resp.Body, events)
	}()
	return events, nil
}

func (c *Client) read(ctx context.Context, body io.Reader, events chan<- Event) {
	deliver := func(e Event) bool {
		select {
		case events <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var data []string
	dispatch := func() (terminal, ok bool) {
		if len(data) == 0 {
			return false, true
		}
		payload := strings.Join(data, "\n")
		data = data[:0]

		e, err := Decode([]byte(payload))
		switch {
		case errors.Is(err, ErrUnknownStage):
			c.logger.Debug("unknown_status_stage_ignored", zap.Error(err))
			return false, true
		case err != nil:
			c.logger.Warn("malformed_frame_dropped", zap.Error(err), zap.Int("frame_bytes", len(payload)))
			return false, true
		}
		return Terminal(e), deliver(e)
	}

	reader := bufio.NewReaderSize(body, 64*1024)
	size, oversized := 0, false
	var readErr error
	for {
		line, tooLong, err := readLine(reader, maxFrameSize)
		if err != nil {
			readErr = err
			break
		}
		switch {
		case line == "" && !tooLong:
			if oversized {
				c.logger.Warn("malformed_frame_dropped", zap.String("reason", "frame exceeds size limit"), zap.Int("limit_bytes", maxFrameSize))
				data, size, oversized = data[:0], 0, false
				continue
			}
			if terminal, ok := dispatch(); terminal || !ok {
				return
			}
			size = 0
		case oversized:
		case tooLong:
			oversized = true
		case strings.HasPrefix(line, ":"):
			// comment, used for keep-alive pings
		case strings.HasPrefix(line, "data:"):
			chunk := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			size += len(chunk)
			if size > maxFrameSize {
				oversized = true
				continue
			}
			data = append(data, chunk)
		}
	}
	if oversized {
		c.logger.Warn("malformed_frame_dropped", zap.String("reason", "frame exceeds size limit"), zap.Int("limit_bytes", maxFrameSize))
		data = data[:0]
	}
	if terminal, ok := dispatch(); terminal || !ok {
		return
	}

	if ctx.Err() != nil {
		return
	}
	msg := ErrIncompleteStream.Error()
	if readErr != nil && !errors.Is(readErr, io.EOF) {
		msg = fmt.Sprintf("%s: %v", msg, readErr)
	}
	deliver(ErrorEvent{Message: msg})
}

// readLine reads one line without its terminator. A line longer than limit is consumed
// and discarded, and reported with tooLong set.
func readLine(r *bufio.Reader, limit int) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return "", false, err
		}
		if !tooLong {
			if len(buf)+len(chunk) > limit {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			return string(buf), tooLong, nil
		}
	}
}
