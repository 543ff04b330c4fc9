package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/vinealabs/go-sommelier/pkg/llm"
	"github.com/vinealabs/go-sommelier/pkg/wine"
)

// StreamingClient consumes a server-push chat stream. One stream is
// in-flight per client instance; starting a new one tears down the
// previous first.
type StreamingClient struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger

	// OnFirstToken fires once per stream with the first content fragment.
	// startTTS signals that speech synthesis should begin now.
	OnFirstToken func(content string, startTTS bool)

	// OnToken fires for each subsequent fragment, in strict arrival order.
	OnToken func(content string)

	// OnComplete fires once with the authoritative conversation id.
	OnComplete func(conversationID string)

	// OnError fires once with a human-readable message. The partial text
	// accumulated so far remains readable via Text.
	OnError func(message string)

	mu      sync.Mutex
	current *streamSession
	buffer  strings.Builder
}

type streamSession struct {
	cancel   context.CancelFunc
	body     io.Closer
	doneCh   chan struct{}
	terminal bool
}

// NewStreamingClient creates a client for the given stream endpoint.
// The http client may be nil; a streaming-friendly default (no overall
// timeout) is used.
func NewStreamingClient(endpoint string, httpClient *http.Client, logger *slog.Logger) *StreamingClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamingClient{
		endpoint: endpoint,
		http:     httpClient,
		logger:   logger.With("component", "chat.client"),
	}
}

// StartStreaming issues the chat request and consumes the envelope stream
// in a background goroutine. Any active stream is stopped first and its
// remaining events discarded.
func (c *StreamingClient) StartStreaming(ctx context.Context, messages []llm.Message, conversationID string, wineCtx *wine.Context) error {
	c.Stop()

	payload, err := json.Marshal(Request{
		Messages:       messages,
		ConversationID: conversationID,
		WineContext:    wineCtx,
	})
	if err != nil {
		return fmt.Errorf("chat: marshal request: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, "POST", c.endpoint, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return fmt.Errorf("chat: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("chat: stream request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("chat: stream request: unexpected status %d", resp.StatusCode)
	}

	sess := &streamSession{
		cancel: cancel,
		body:   resp.Body,
		doneCh: make(chan struct{}),
	}

	c.mu.Lock()
	c.current = sess
	c.buffer.Reset()
	c.mu.Unlock()

	go c.consume(sess, resp.Body)
	return nil
}

// consume reads SSE lines and dispatches envelopes until a terminal event,
// a malformed envelope, or teardown.
func (c *StreamingClient) consume(sess *streamSession, body io.ReadCloser) {
	defer close(sess.doneCh)
	defer body.Close()

	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// A drop before the terminal envelope is a stream
			// interruption; partial content stays in the buffer.
			if !c.isTerminal(sess) {
				c.dispatch(sess, Envelope{Type: TypeError, Message: "connection lost mid-response"})
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var env Envelope
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			c.logger.Warn("malformed stream envelope", "error", err)
			c.dispatch(sess, Envelope{Type: TypeError, Message: "malformed response from chat service"})
			return
		}

		c.dispatch(sess, env)
		if env.Terminal() {
			return
		}
	}
}

// dispatch applies one envelope. After a terminal envelope, or once the
// session is superseded, nothing further is delivered.
func (c *StreamingClient) dispatch(sess *streamSession, env Envelope) {
	c.mu.Lock()
	if c.current != sess || sess.terminal {
		c.mu.Unlock()
		return
	}
	if env.Terminal() {
		sess.terminal = true
	}
	if env.Type == TypeFirstToken || env.Type == TypeToken {
		c.buffer.WriteString(env.Content)
	}
	c.mu.Unlock()

	switch env.Type {
	case TypeFirstToken:
		if c.OnFirstToken != nil {
			c.OnFirstToken(env.Content, env.StartTTS)
		}
	case TypeToken:
		if c.OnToken != nil {
			c.OnToken(env.Content)
		}
	case TypeComplete:
		if c.OnComplete != nil {
			c.OnComplete(env.ConversationID)
		}
	case TypeError:
		if c.OnError != nil {
			c.OnError(env.Message)
		}
	}
}

func (c *StreamingClient) isTerminal(sess *streamSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sess.terminal || c.current != sess
}

// Text returns the content accumulated so far for the current (or most
// recent) stream. Preserved across errors.
func (c *StreamingClient) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.String()
}

// IsStreaming reports whether a stream is currently active.
func (c *StreamingClient) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && !c.current.terminal
}

// Stop tears down the active stream unconditionally, from any state.
// Remaining events from the old stream are discarded.
func (c *StreamingClient) Stop() {
	c.mu.Lock()
	sess := c.current
	c.current = nil
	c.mu.Unlock()

	if sess == nil {
		return
	}

	sess.cancel()
	sess.body.Close()
	<-sess.doneCh
}
