// Package transport speaks the coordination server's event protocol over a
// websocket: one JSON envelope per message, {"event": ..., "data": {...}}.
// The wire details live here; callers deal only in event names and payloads.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one live connection to the server. All writes are serialized
// through a single mutex so concurrent emitters never interleave frames.
type Conn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the server at url with a bounded handshake timeout.
func Dial(ctx context.Context, url string, handshakeTimeout time.Duration) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (status %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return &Conn{ws: ws}, nil
}

// Emit sends one event envelope. Safe for concurrent use.
func (c *Conn) Emit(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to send %s: %w", event, err)
	}
	return nil
}

// Next blocks until the next inbound envelope arrives. It returns an error
// when the connection is closed or the peer sends a malformed frame; a
// malformed frame is reported without tearing down the connection.
func (c *Conn) Next() (Envelope, error) {
	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			return Envelope{}, fmt.Errorf("connection lost: %w", err)
		}
		if len(message) == 0 {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			return Envelope{}, errMalformed{err}
		}
		return env, nil
	}
}

// Close shuts the connection down. Idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

type errMalformed struct{ cause error }

func (e errMalformed) Error() string {
	return fmt.Sprintf("malformed frame: %v", e.cause)
}

func (e errMalformed) Unwrap() error { return e.cause }

// IsMalformed reports whether err came from an undecodable inbound frame,
// as opposed to a lost connection.
func IsMalformed(err error) bool {
	_, ok := err.(errMalformed)
	return ok
}
