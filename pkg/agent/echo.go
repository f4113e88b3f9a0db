package agent

import "context"

// Echo is a trivial engine that answers every prompt with the prompt
// itself. It exists for offline smoke runs against a live server when no
// model endpoint is available.
type Echo struct{}

func (Echo) Init(ctx context.Context, args []string) (Handle, error) {
	return echoHandle{}, nil
}

type echoHandle struct{}

func (echoHandle) Run(ctx context.Context, messages []Message) (<-chan Chunk, error) {
	var last string
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	out := make(chan Chunk, 1)
	out <- Chunk{Content: last}
	close(out)
	return out, nil
}
