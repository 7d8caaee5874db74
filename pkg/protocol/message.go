// Package protocol implements the remote-debugging session: JSON-RPC command
// dispatch over a websocket with per-command timeouts, and named event
// delivery fanned out per sub-session.
package protocol

import "encoding/json"

// Message is the wire envelope shared by commands, responses, and events.
// A message with an ID is a command or its response; a message with only a
// method is an event.
type Message struct {
	ID        int64           `json:"id,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *ResponseError  `json:"error,omitempty"`
}

// Event is a protocol notification annotated with the sub-session it
// originated from. An empty SessionID means the root target.
type Event struct {
	Method    string
	Params    json.RawMessage
	SessionID string
}

// Handler receives a single protocol event.
type Handler func(Event)

// Conn is the transport under a Connection. *websocket.Conn satisfies it;
// tests substitute an in-memory implementation.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}
