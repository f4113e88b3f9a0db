package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcplink/mcplink/pkg/agent"
	"github.com/mcplink/mcplink/pkg/audit"
	"github.com/mcplink/mcplink/pkg/log"
	"github.com/mcplink/mcplink/pkg/transport"
)

// Validation failures are wire-visible: their text is sent verbatim in the
// mcp_error payload, so the capitalized server-facing wording is fixed.
var (
	errMessageRequired   = errors.New("Message is required")
	errSenderRequired    = errors.New("Sender is required")
	errMessageIDRequired = errors.New("Message ID is required")
)

// Dispatcher turns one inbound task event into exactly one outbound event:
// mcp_response on success, mcp_error on any failure. Each task owns its own
// audit trail; tasks are independent and unordered relative to each other.
type Dispatcher struct {
	clientID    string
	rec         *audit.Recorder
	initializer agent.Initializer
	now         func() time.Time
}

// NewDispatcher builds a Dispatcher using the given execution port.
func NewDispatcher(clientID string, rec *audit.Recorder, initializer agent.Initializer) *Dispatcher {
	return &Dispatcher{
		clientID:    clientID,
		rec:         rec,
		initializer: initializer,
		now:         time.Now,
	}
}

type taskResult struct {
	content   string
	to        string
	messageID string
}

// Handle processes one receive_message payload to completion. A failed
// terminal emission (connection dropped mid-task) is logged, never retried.
func (d *Dispatcher) Handle(ctx context.Context, sess Session, payload json.RawMessage) {
	trail := audit.NewTrail(d.now())

	res, err := d.process(ctx, trail, payload)
	if err != nil {
		d.rec.Record(trail, audit.CategoryError, "error processing received message: "+err.Error())
		if emitErr := sess.Emit(transport.EventMCPError, transport.ErrorPayload{
			ClientID: d.clientID,
			Error:    err.Error(),
		}); emitErr != nil {
			d.rec.Record(trail, audit.CategoryError, "failed to send mcp_error: "+emitErr.Error())
		}
		return
	}

	if emitErr := sess.Emit(transport.EventMCPResponse, transport.ResponsePayload{
		ClientID:  d.clientID,
		Response:  res.content,
		To:        res.to,
		MessageID: res.messageID,
	}); emitErr != nil {
		d.rec.Record(trail, audit.CategoryError, "failed to send mcp_response: "+emitErr.Error())
	}
}

func (d *Dispatcher) process(ctx context.Context, trail *audit.Trail, payload json.RawMessage) (taskResult, error) {
	var task transport.TaskPayload
	if err := json.Unmarshal(payload, &task); err != nil {
		return taskResult{}, fmt.Errorf("malformed task payload: %w", err)
	}

	if task.Message == "" {
		return taskResult{}, errMessageRequired
	}
	if task.From == "" {
		return taskResult{}, errSenderRequired
	}
	if task.MessageID == "" {
		return taskResult{}, errMessageIDRequired
	}

	params := make([]string, len(task.Args))
	for i, a := range task.Args {
		params[i] = a.Argument
	}

	d.rec.Record(trail, audit.CategoryRequest, task.Message)
	d.rec.Record(trail, audit.CategoryParameters, fmt.Sprintf("%v", params))
	d.rec.Record(trail, audit.CategoryPrint, fmt.Sprintf("accepted %s from %s", task.MessageID, task.From))
	log.Info("task accepted", "messageId", task.MessageID, "from", task.From)

	d.rec.Record(trail, audit.CategorySystem, "initializing agent...")
	handle, err := d.initializer.Init(ctx, params)
	if err != nil {
		return taskResult{}, err
	}
	d.rec.Record(trail, audit.CategorySystem, "agent initialized")

	d.rec.Record(trail, audit.CategorySystem, "model request started")
	stream, err := handle.Run(ctx, []agent.Message{{Role: "user", Content: task.Message}})
	if err != nil {
		return taskResult{}, err
	}

	// Replace semantics: each chunk carries the full current content, so
	// only the latest one matters.
	var last string
	for chunk := range stream {
		if chunk.Err != nil {
			return taskResult{}, chunk.Err
		}
		last = chunk.Content
	}
	d.rec.Record(trail, audit.CategorySystem, "model response received")
	d.rec.Record(trail, audit.CategoryAIResponse, last)

	// Persistence is best-effort: losing the audit trail is tolerated,
	// losing the response is not.
	if path, err := d.rec.Persist(trail, task.Message, last, params); err != nil {
		d.rec.Record(trail, audit.CategoryError, "failed to persist transcript: "+err.Error())
	} else {
		d.rec.Record(trail, audit.CategorySystem, "request and response saved: "+path)
	}

	return taskResult{content: last, to: task.From, messageID: task.MessageID}, nil
}
