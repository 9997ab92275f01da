// Package channel owns the live connection to the backend event stream.
// It dials one websocket, decodes the named server events into typed
// values, and hands them to the consumer in receipt order. The review
// analysis itself happens on the backend; this side only listens.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/jugalmahida/prodevscore/internal/api"
)

// EventType names an inbound server event.
type EventType string

const (
	// EventConnected carries the connection id assigned by the backend.
	// The id must accompany any review-start request so progress events
	// are routed back to this subscription.
	EventConnected EventType = "connected"

	EventReviewStarted  EventType = "reviewStarted"
	EventReviewProgress EventType = "reviewProgress"
	EventReviewError    EventType = "reviewError"
	EventReviewDone     EventType = "reviewDone"

	// EventDisconnected and EventConnectError are informational; they
	// trigger no state transition on their own.
	EventDisconnected EventType = "disconnected"
	EventConnectError EventType = "connect_error"
)

// Event is one decoded server event. Exactly one payload field is set,
// matching Type.
type Event struct {
	Type         EventType
	ConnectionID string
	Started      *api.ReviewStarted
	Progress     *api.ReviewProgress
	ItemError    *api.ReviewItemError
	Results      *api.FinalResults
	Reason       string
}

// frame is the wire envelope for every server push.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type connAck struct {
	SocketID string `json:"socketId"`
}

// Channel maintains at most one live transport at a time. Reconnection
// is bounded: a fixed number of attempts with a fixed delay, after
// which a connect_error event is emitted and the channel goes quiet.
// The connection id is deliberately not invalidated on exhaustion.
type Channel struct {
	url      string
	attempts int
	delay    time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	connID string
	closed bool

	events chan Event
	done   chan struct{}
}

// New creates a channel for the given websocket URL. Non-positive
// attempts or delay fall back to 5 attempts at 1s, the defaults the
// dashboard has always used.
func New(url string, attempts int, delay time.Duration) *Channel {
	if attempts <= 0 {
		attempts = 5
	}
	if delay <= 0 {
		delay = time.Second
	}
	return &Channel{
		url:      url,
		attempts: attempts,
		delay:    delay,
		events:   make(chan Event, 16),
		done:     make(chan struct{}),
	}
}

// Connect dials the event stream and waits for the connection ack.
// An existing transport is closed first so repeated connects never
// leak connections.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("channel is closed")
	}
	old := c.conn
	c.conn = nil
	c.mu.Unlock()

	if old != nil {
		old.Close(websocket.StatusNormalClosure, "reconnecting")
	}

	return c.dial(ctx)
}

func (c *Channel) dial(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("connect event channel: %w", err)
	}

	// The first frame is the connection ack with our subscription id.
	var f frame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		conn.Close(websocket.StatusProtocolError, "no connection ack")
		return fmt.Errorf("read connection ack: %w", err)
	}
	if f.Event != "connection" {
		conn.Close(websocket.StatusProtocolError, "unexpected first frame")
		return fmt.Errorf("expected connection ack, got %q", f.Event)
	}
	var ack connAck
	if err := json.Unmarshal(f.Data, &ack); err != nil || ack.SocketID == "" {
		conn.Close(websocket.StatusProtocolError, "bad connection ack")
		return fmt.Errorf("decode connection ack: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
		return fmt.Errorf("channel is closed")
	}
	c.conn = conn
	c.connID = ack.SocketID
	c.mu.Unlock()

	c.emit(Event{Type: EventConnected, ConnectionID: ack.SocketID})
	go c.readLoop(conn)
	return nil
}

// Events returns the inbound event feed. The feed is never closed;
// consumers select on Done for termination.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Done is closed once Disconnect has been called.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// ConnectionID returns the id from the latest connection ack, or empty
// before the first ack.
func (c *Channel) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// Disconnect tears the channel down. It is idempotent and safe to call
// from page-unmount paths that may run more than once.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	close(c.done)
	c.mu.Unlock()

	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
}

func (c *Channel) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			c.mu.Lock()
			stale := c.closed || c.conn != conn
			c.mu.Unlock()
			if stale {
				return
			}
			c.emit(Event{Type: EventDisconnected, Reason: err.Error()})
			c.reconnect(conn)
			return
		}

		if ev, ok := decodeFrame(f); ok {
			if ev.Type == EventConnected {
				c.mu.Lock()
				c.connID = ev.ConnectionID
				c.mu.Unlock()
			}
			c.emit(ev)
		}
	}
}

// reconnect retries the transport after an unexpected drop. Attempts
// are bounded with a fixed delay; exhaustion surfaces as connect_error.
func (c *Channel) reconnect(old *websocket.Conn) {
	old.Close(websocket.StatusNormalClosure, "reconnecting")

	for i := 0; i < c.attempts; i++ {
		select {
		case <-c.done:
			return
		case <-time.After(c.delay):
		}

		if err := c.dial(context.Background()); err == nil {
			return
		}
	}

	c.emit(Event{Type: EventConnectError, Reason: "reconnect attempts exhausted"})
}

// decodeFrame maps a wire frame to its typed event. Unknown event names
// are dropped; the stream carries only what we subscribe to.
func decodeFrame(f frame) (Event, bool) {
	switch f.Event {
	case "connection":
		var ack connAck
		if json.Unmarshal(f.Data, &ack) != nil || ack.SocketID == "" {
			return Event{}, false
		}
		return Event{Type: EventConnected, ConnectionID: ack.SocketID}, true
	case "reviewStarted":
		var d api.ReviewStarted
		if json.Unmarshal(f.Data, &d) != nil {
			return Event{}, false
		}
		return Event{Type: EventReviewStarted, Started: &d}, true
	case "reviewProgress":
		var d api.ReviewProgress
		if json.Unmarshal(f.Data, &d) != nil {
			return Event{}, false
		}
		return Event{Type: EventReviewProgress, Progress: &d}, true
	case "reviewError":
		var d api.ReviewItemError
		if json.Unmarshal(f.Data, &d) != nil {
			return Event{}, false
		}
		return Event{Type: EventReviewError, ItemError: &d}, true
	case "reviewDone":
		var d api.FinalResults
		if json.Unmarshal(f.Data, &d) != nil {
			return Event{}, false
		}
		return Event{Type: EventReviewDone, Results: &d}, true
	}
	return Event{}, false
}
