package agent

import (
	"context"
	"sync"
)

// Scripted is a test double that plays back a fixed chunk sequence and
// records what it was asked to do.
type Scripted struct {
	// InitErr, when set, makes Init fail without producing a handle.
	InitErr error
	// RunErr, when set, makes Run fail before any chunk is produced.
	RunErr error
	// Chunks is the stream played back by Run, in order.
	Chunks []Chunk

	mu        sync.Mutex
	initCalls int
	runCalls  int
	args      [][]string
	messages  [][]Message
}

func (s *Scripted) Init(ctx context.Context, args []string) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initCalls++
	copied := make([]string, len(args))
	copy(copied, args)
	s.args = append(s.args, copied)
	if s.InitErr != nil {
		return nil, s.InitErr
	}
	return s, nil
}

func (s *Scripted) Run(ctx context.Context, messages []Message) (<-chan Chunk, error) {
	s.mu.Lock()
	s.runCalls++
	s.messages = append(s.messages, messages)
	if s.RunErr != nil {
		s.mu.Unlock()
		return nil, s.RunErr
	}
	chunks := s.Chunks
	s.mu.Unlock()

	out := make(chan Chunk, len(chunks))
	for _, c := range chunks {
		out <- c
	}
	close(out)
	return out, nil
}

// InitCalls returns how many times Init was invoked.
func (s *Scripted) InitCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initCalls
}

// RunCalls returns how many times Run was invoked.
func (s *Scripted) RunCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCalls
}

// Args returns the capability-argument lists passed to Init, per call.
func (s *Scripted) Args() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.args))
	copy(out, s.args)
	return out
}

// Messages returns the message lists passed to Run, per call.
func (s *Scripted) Messages() [][]Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Message, len(s.messages))
	copy(out, s.messages)
	return out
}
