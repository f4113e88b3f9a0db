package bridge

import (
	"context"
	"time"

	"github.com/mcplink/mcplink/pkg/audit"
	"github.com/mcplink/mcplink/pkg/transport"
)

// signaler emits client_ping on a fixed period for the lifetime of one
// session. The server can demand an immediate signal via ForceNow. If a
// ping fails to send, the connection is already gone: the signaler logs
// and terminates itself, leaving recovery to the supervisor.
type signaler struct {
	clientID string
	period   time.Duration
	sess     Session
	rec      *audit.Recorder
	force    chan struct{}
}

func newSignaler(clientID string, period time.Duration, sess Session, rec *audit.Recorder) *signaler {
	return &signaler{
		clientID: clientID,
		period:   period,
		sess:     sess,
		rec:      rec,
		force:    make(chan struct{}, 1),
	}
}

func (k *signaler) run(ctx context.Context) {
	ticker := time.NewTicker(k.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-k.force:
		}

		if err := k.sess.Emit(transport.EventClientPing, transport.PingPayload{ClientID: k.clientID}); err != nil {
			k.rec.Record(nil, audit.CategoryError, "error sending ping: "+err.Error())
			return
		}
	}
}

// ForceNow requests one immediate signal without disturbing the period.
// Coalesces if a forced signal is already pending.
func (k *signaler) ForceNow() {
	select {
	case k.force <- struct{}{}:
	default:
	}
}
