package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mcplink/mcplink/pkg/transport"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSignalerEmitsPeriodically(t *testing.T) {
	rec, _ := newTestRecorder(t)
	sess := newFakeSession()
	sig := newSignaler("TEST", 15*time.Millisecond, sess, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sig.run(ctx)
		close(done)
	}()

	waitFor(t, 2*time.Second, func() bool {
		return len(sess.emittedOf(transport.EventClientPing)) >= 3
	}, "signaler did not emit 3 pings in time")

	cancel()
	<-done

	pings := sess.emittedOf(transport.EventClientPing)
	for _, p := range pings {
		if p.Data.(transport.PingPayload).ClientID != "TEST" {
			t.Errorf("ping payload = %+v", p.Data)
		}
	}

	// Zero signals once stopped.
	count := len(sess.emittedOf(transport.EventClientPing))
	time.Sleep(60 * time.Millisecond)
	if got := len(sess.emittedOf(transport.EventClientPing)); got != count {
		t.Errorf("signaler emitted %d pings after stop", got-count)
	}
}

func TestSignalerForceNow(t *testing.T) {
	rec, _ := newTestRecorder(t)
	sess := newFakeSession()
	// Period far beyond the test horizon: only a forced signal can fire.
	sig := newSignaler("TEST", time.Hour, sess, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sig.run(ctx)

	sig.ForceNow()
	waitFor(t, 2*time.Second, func() bool {
		return len(sess.emittedOf(transport.EventClientPing)) == 1
	}, "forced ping was not emitted")
}

func TestSignalerTerminatesOnEmitFailure(t *testing.T) {
	rec, _ := newTestRecorder(t)
	sess := newFakeSession()
	sess.emitHook = func(event string) error {
		return errors.New("broken pipe")
	}
	sig := newSignaler("TEST", time.Hour, sess, rec)

	done := make(chan struct{})
	go func() {
		sig.run(context.Background())
		close(done)
	}()

	sig.ForceNow()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("signaler did not terminate after emit failure")
	}
}

func TestForceNowCoalesces(t *testing.T) {
	rec, _ := newTestRecorder(t)
	sess := newFakeSession()
	sig := newSignaler("TEST", time.Hour, sess, rec)

	// Multiple requests before the signaler runs collapse into one.
	sig.ForceNow()
	sig.ForceNow()
	sig.ForceNow()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sig.run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		return len(sess.emittedOf(transport.EventClientPing)) >= 1
	}, "no forced ping emitted")

	time.Sleep(30 * time.Millisecond)
	if got := len(sess.emittedOf(transport.EventClientPing)); got != 1 {
		t.Errorf("got %d pings, want 1 coalesced ping", got)
	}
}
