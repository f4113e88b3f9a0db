// Package bridge is the resilient connection-and-dispatch core: it keeps a
// session to the coordination server alive forever, signals liveness on a
// fixed period, and hands inbound task requests to the agent execution port
// without ever blocking the connection.
package bridge

import (
	"context"
	"time"

	"github.com/mcplink/mcplink/pkg/transport"
)

// Session is one live connection's send/receive surface. *transport.Conn
// implements it; tests substitute fakes.
type Session interface {
	Emit(event string, data interface{}) error
	Next() (transport.Envelope, error)
	Close() error
}

// DialFunc establishes a session. The default dials the websocket
// transport; tests substitute failing or scripted dialers.
type DialFunc func(ctx context.Context, url string, handshakeTimeout time.Duration) (Session, error)

func defaultDial(ctx context.Context, url string, handshakeTimeout time.Duration) (Session, error) {
	return transport.Dial(ctx, url, handshakeTimeout)
}

// Config holds the supervisor's connection policy.
type Config struct {
	ServerURL        string
	ClientID         string
	KeepAlivePeriod  time.Duration
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
}
