package transport

import "encoding/json"

// Event names exchanged with the coordination server.
const (
	// Outbound
	EventClientInit  = "client_init"
	EventClientPing  = "client_ping"
	EventMCPResponse = "mcp_response"
	EventMCPError    = "mcp_error"

	// Inbound
	EventForcePing      = "force_ping"
	EventReceiveMessage = "receive_message"
)

// Envelope is the wire frame: an event name plus its JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// InitPayload announces the client identity after a successful connect.
type InitPayload struct {
	ClientID string `json:"clientId"`
}

// PingPayload is the periodic liveness signal.
type PingPayload struct {
	ClientID string `json:"clientId"`
}

// ResponsePayload carries a completed task result back to its sender.
type ResponsePayload struct {
	ClientID  string `json:"clientId"`
	Response  string `json:"response"`
	To        string `json:"to"`
	MessageID string `json:"messageId"`
}

// ErrorPayload reports a task-scoped failure to the server.
type ErrorPayload struct {
	ClientID string `json:"clientId"`
	Error    string `json:"error"`
}

// ArgumentEntry is one element of a task's ordered argument list.
type ArgumentEntry struct {
	Argument string `json:"ARGUMENT"`
}

// TaskPayload is an inbound receive_message request.
type TaskPayload struct {
	Message   string          `json:"message"`
	From      string          `json:"from"`
	MessageID string          `json:"messageId"`
	Args      []ArgumentEntry `json:"arg"`
}
