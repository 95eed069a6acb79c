package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/socialmesh/notifyhub-go/pkg/notification"
	"github.com/socialmesh/notifyhub-go/pkg/transport"
)

// Stream handles the Server-Sent Events push channel for one topic.
type Stream struct {
	client    *Client
	topic     string
	events    chan notification.Event
	errors    chan error
	done      chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Subscribe opens the push channel for a topic. Events flow on Events()
// until Close is called or ctx is cancelled; the connection reconnects
// after transient failures with the configured delay.
func (c *Client) Subscribe(ctx context.Context, topic string) (transport.Stream, error) {
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		client: c,
		topic:  topic,
		events: make(chan notification.Event, c.config.StreamBufferSize),
		errors: make(chan error, 10),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go s.run(streamCtx)

	return s, nil
}

// Events returns the channel delivering pushed events.
func (s *Stream) Events() <-chan notification.Event {
	return s.events
}

// Errors returns the channel delivering non-fatal stream errors.
func (s *Stream) Errors() <-chan error {
	return s.errors
}

// Done returns a channel closed when the stream has fully stopped.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close stops the stream and waits for teardown. Closing an
// already-closed stream is a no-op.
func (s *Stream) Close() error {
	s.closeOnce.Do(s.cancel)
	<-s.done
	return nil
}

// run is the reconnect loop.
func (s *Stream) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)
	defer close(s.errors)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.connectAndStream(ctx); err != nil && ctx.Err() == nil {
			select {
			case s.errors <- fmt.Errorf("streaming error: %w", err):
			default:
			}
		}

		select {
		case <-time.After(s.client.config.ReconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

// connectAndStream establishes the SSE connection and processes events
// until the connection drops or ctx is cancelled.
func (s *Stream) connectAndStream(ctx context.Context) error {
	streamURL := s.client.baseURL.ResolveReference(&url.URL{Path: "/api/v1/notifications/stream"})
	values := streamURL.Query()
	values.Set("topic", s.topic)
	streamURL.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create streaming request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if s.client.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.client.token)
	}

	resp, err := s.client.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("streaming failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return s.processSSE(ctx, resp.Body)
}

// processSSE reads the SSE wire format. Each "data:" line carries one
// event payload; payloads that fail to decode or lack required fields are
// dropped with a warning, never propagated.
func (s *Stream) processSSE(ctx context.Context, reader io.Reader) error {
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			// Keepalive comments, blank separators and other SSE fields.
			continue
		}

		evt, err := notification.DecodeEvent([]byte(strings.TrimPrefix(line, "data: ")))
		if err != nil {
			s.client.config.Logger.Warn("dropping malformed push payload",
				"topic", s.topic, "error", err)
			continue
		}

		select {
		case s.events <- evt:
		case <-ctx.Done():
			return ctx.Err()
		default:
			s.client.config.Logger.Warn("push buffer full, dropping event",
				"topic", s.topic, "event_id", evt.ID)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading event stream: %w", err)
	}

	return nil
}

// Verify that Stream implements the transport.Stream interface at compile time
var _ transport.Stream = (*Stream)(nil)
