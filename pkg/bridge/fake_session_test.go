package bridge

import (
	"errors"
	"sync"

	"github.com/mcplink/mcplink/pkg/transport"
)

var errSessionClosed = errors.New("connection lost: session closed")

type emittedEvent struct {
	Event string
	Data  interface{}
}

// fakeSession is an in-memory Session. Inbound envelopes are pushed by the
// test; closing the session makes Next and Emit fail like a dropped
// connection.
type fakeSession struct {
	mu       sync.Mutex
	events   []emittedEvent
	emitHook func(event string) error

	inbound   chan transport.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		inbound: make(chan transport.Envelope, 16),
		done:    make(chan struct{}),
	}
}

func (f *fakeSession) Emit(event string, data interface{}) error {
	select {
	case <-f.done:
		return errSessionClosed
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitHook != nil {
		if err := f.emitHook(event); err != nil {
			return err
		}
	}
	f.events = append(f.events, emittedEvent{Event: event, Data: data})
	return nil
}

func (f *fakeSession) Next() (transport.Envelope, error) {
	select {
	case env := <-f.inbound:
		return env, nil
	case <-f.done:
		return transport.Envelope{}, errSessionClosed
	}
}

func (f *fakeSession) Close() error {
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func (f *fakeSession) push(env transport.Envelope) {
	f.inbound <- env
}

func (f *fakeSession) emitted() []emittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]emittedEvent, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeSession) emittedOf(event string) []emittedEvent {
	var out []emittedEvent
	for _, e := range f.emitted() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
