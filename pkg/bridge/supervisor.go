package bridge

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcplink/mcplink/pkg/agent"
	"github.com/mcplink/mcplink/pkg/audit"
	"github.com/mcplink/mcplink/pkg/log"
	"github.com/mcplink/mcplink/pkg/transport"
)

// Supervisor owns the connection lifecycle: connect, serve the session
// until it drops, back off, retry, forever. It is the sole owner of the
// transport handle; the signaler and dispatcher only see the Session's
// serialized Emit.
type Supervisor struct {
	cfg        Config
	rec        *audit.Recorder
	dispatcher *Dispatcher
	dial       DialFunc

	tasks sync.WaitGroup
}

// New builds a Supervisor dispatching tasks to the given execution port.
func New(cfg Config, rec *audit.Recorder, initializer agent.Initializer) *Supervisor {
	return &Supervisor{
		cfg:        cfg,
		rec:        rec,
		dispatcher: NewDispatcher(cfg.ClientID, rec, initializer),
		dial:       defaultDial,
	}
}

// Run drives the reconnect loop until ctx is cancelled. There is no retry
// cap: every disconnect or connect failure leads to another attempt after
// the configured delay. Run returns only on cancellation, after in-flight
// task dispatches have drained.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return s.drain(ctx)
		}

		s.rec.Record(nil, audit.CategorySystem, "attempting to connect to server...")
		sess, err := s.dial(ctx, s.cfg.ServerURL, s.cfg.HandshakeTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return s.drain(ctx)
			}
			s.rec.Record(nil, audit.CategoryError, "connection failed: "+err.Error())
			s.rec.Record(nil, audit.CategorySystem, "retrying connection in "+s.cfg.ReconnectDelay.String())
			if !sleep(ctx, s.cfg.ReconnectDelay) {
				return s.drain(ctx)
			}
			continue
		}

		s.runSession(ctx, sess)

		if ctx.Err() != nil {
			return s.drain(ctx)
		}
		if !sleep(ctx, s.cfg.ReconnectDelay) {
			return s.drain(ctx)
		}
	}
}

// runSession serves one connection until it drops. The signaler is joined
// before returning, so a new session can never observe a stale signaler.
func (s *Supervisor) runSession(ctx context.Context, sess Session) {
	defer sess.Close()

	// Unblock the read loop when the process shuts down.
	stop := context.AfterFunc(ctx, func() { _ = sess.Close() })
	defer stop()

	if err := sess.Emit(transport.EventClientInit, transport.InitPayload{ClientID: s.cfg.ClientID}); err != nil {
		s.rec.Record(nil, audit.CategoryError, "failed to announce identity to server: "+err.Error())
		return
	}
	s.rec.Record(nil, audit.CategorySystem, "connected to server")
	log.Info("connected", "server", s.cfg.ServerURL, "clientId", s.cfg.ClientID)

	sig := newSignaler(s.cfg.ClientID, s.cfg.KeepAlivePeriod, sess, s.rec)

	g, sessCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sig.run(sessCtx)
		return nil
	})
	g.Go(func() error {
		return s.readLoop(ctx, sess, sig)
	})

	err := g.Wait()
	if err != nil && ctx.Err() == nil {
		s.rec.Record(nil, audit.CategorySystem, "disconnected from server")
		log.Warn("disconnected", "error", err)
	}
}

// readLoop consumes inbound envelopes. Task dispatches run on their own
// goroutines with the supervisor's outer context, so an accepted task runs
// to completion even if this session drops mid-stream.
func (s *Supervisor) readLoop(ctx context.Context, sess Session, sig *signaler) error {
	for {
		env, err := sess.Next()
		if err != nil {
			if transport.IsMalformed(err) {
				s.rec.Record(nil, audit.CategoryError, "dropping malformed frame: "+err.Error())
				continue
			}
			return err
		}

		switch env.Event {
		case transport.EventForcePing:
			sig.ForceNow()
		case transport.EventReceiveMessage:
			payload := env.Data
			s.tasks.Add(1)
			go func() {
				defer s.tasks.Done()
				s.dispatcher.Handle(ctx, sess, payload)
			}()
		default:
			log.Debug("ignoring unknown event", "event", env.Event)
		}
	}
}

func (s *Supervisor) drain(ctx context.Context) error {
	s.tasks.Wait()
	return ctx.Err()
}

// sleep blocks for d, scoped to this goroutine only. Returns false if ctx
// was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
