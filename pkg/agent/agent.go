// Package agent defines the execution port: the boundary to the black-box
// capability that turns a prompt into a streamed response. The bridge core
// depends only on these interfaces; concrete engines live in subpackages.
package agent

import "context"

// Message is one conversation turn submitted to the agent.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chunk is one incremental update from a running agent. Content carries the
// full current response text (replace semantics): consumers keep the latest
// chunk, they do not concatenate. A chunk with a non-nil Err terminates the
// stream as a failure.
type Chunk struct {
	Content string
	Err     error
}

// Handle is a configured agent ready to process messages. The returned
// stream is finite and not restartable: the channel closes after the final
// chunk.
type Handle interface {
	Run(ctx context.Context, messages []Message) (<-chan Chunk, error)
}

// Initializer configures an agent for one task. args is the ordered
// capability-argument list from the task request; a configuration problem
// is reported as an error without producing a Handle.
type Initializer interface {
	Init(ctx context.Context, args []string) (Handle, error)
}
