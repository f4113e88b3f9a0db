package audit

import "time"

// Category classifies an audit event.
type Category string

const (
	CategorySystem     Category = "system"
	CategoryError      Category = "error"
	CategoryRequest    Category = "request"
	CategoryParameters Category = "parameters"
	CategoryAIResponse Category = "ai_response"
	CategoryResponse   Category = "response"
	CategoryPrint      Category = "print"
)

// TimestampLayout is the millisecond-precision format used for event
// timestamps and the received_at/generated_at transcript fields.
const TimestampLayout = "2006-01-02 15:04:05.000"

// Event is one immutable audit record. The timestamp is stored
// pre-formatted so the persisted transcript carries it verbatim.
type Event struct {
	Timestamp string   `json:"timestamp"`
	Type      Category `json:"type"`
	Content   string   `json:"content"`
}

// Trail is the ordered in-memory event sequence for a single task. It is
// owned by that task's goroutine for its lifetime and must not be shared
// across tasks.
type Trail struct {
	startedAt time.Time
	events    []Event
	persisted bool
}

// NewTrail starts a trail for a task received at the given time.
func NewTrail(receivedAt time.Time) *Trail {
	return &Trail{startedAt: receivedAt}
}

// StartedAt returns the time the task was received.
func (t *Trail) StartedAt() time.Time {
	return t.startedAt
}

// Events returns a copy of the recorded events, in append order.
func (t *Trail) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

func (t *Trail) append(e Event) {
	t.events = append(t.events, e)
}
