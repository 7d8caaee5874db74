// Package protocoltest provides an in-memory protocol transport for tests.
// Handlers script the browser side: each command written to the conn is
// answered by the handler registered for its method.
package protocoltest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/odvcencio/pharos/pkg/protocol"
)

// Call records one command the client issued.
type Call struct {
	Method    string
	SessionID string
	Params    json.RawMessage
}

// Handler produces the scripted response for one command. Returning
// NoResponse leaves the command pending, which is how timeout behavior is
// exercised.
type Handler func(call Call) (result any, err *protocol.ResponseError)

// NoResponse is the sentinel a Handler returns to withhold the response.
var NoResponse = &struct{ noResponse bool }{true}

// Conn is a scripted in-memory transport satisfying protocol.Conn.
type Conn struct {
	mu        sync.Mutex
	handlers  map[string]Handler
	fallback  Handler
	calls     []Call
	incoming  chan *protocol.Message
	closed    chan struct{}
	closeOnce sync.Once
}

// NewConn builds a transport whose unhandled commands succeed with an empty
// result.
func NewConn() *Conn {
	return &Conn{
		handlers: make(map[string]Handler),
		incoming: make(chan *protocol.Message, 64),
		closed:   make(chan struct{}),
	}
}

// Handle registers the scripted response for a method.
func (c *Conn) Handle(method string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[method] = handler
}

// HandleResult registers a fixed successful result for a method.
func (c *Conn) HandleResult(method string, result any) {
	c.Handle(method, func(Call) (any, *protocol.ResponseError) {
		return result, nil
	})
}

// HandleDefault replaces the fallback used for methods with no handler.
func (c *Conn) HandleDefault(handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback = handler
}

// Calls returns a copy of every command issued so far.
func (c *Conn) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallCount counts how many times the method was issued.
func (c *Conn) CallCount(method string) int {
	count := 0
	for _, call := range c.Calls() {
		if call.Method == method {
			count++
		}
	}
	return count
}

// Emit delivers a protocol event to the client, as if the browser sent it.
func (c *Conn) Emit(method, sessionID string, params any) {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			panic(fmt.Sprintf("protocoltest: encode event params: %v", err))
		}
		raw = data
	}
	c.deliver(&protocol.Message{Method: method, SessionID: sessionID, Params: raw})
}

// WriteJSON receives a command from the client and queues its scripted
// response.
func (c *Conn) WriteJSON(v any) error {
	msg, ok := v.(*protocol.Message)
	if !ok {
		return fmt.Errorf("protocoltest: unexpected write type %T", v)
	}
	select {
	case <-c.closed:
		return errors.New("protocoltest: conn closed")
	default:
	}

	call := Call{Method: msg.Method, SessionID: msg.SessionID, Params: msg.Params}
	c.mu.Lock()
	c.calls = append(c.calls, call)
	handler := c.handlers[msg.Method]
	if handler == nil {
		handler = c.fallback
	}
	c.mu.Unlock()

	var result any
	var respErr *protocol.ResponseError
	if handler != nil {
		result, respErr = handler(call)
		if result == NoResponse {
			return nil
		}
	}

	response := &protocol.Message{ID: msg.ID, SessionID: msg.SessionID, Error: respErr}
	if respErr == nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("protocoltest: encode result for %s: %w", msg.Method, err)
		}
		response.Result = encoded
	}
	c.deliver(response)
	return nil
}

// ReadJSON blocks until the browser side has something to say.
func (c *Conn) ReadJSON(v any) error {
	msg, ok := v.(*protocol.Message)
	if !ok {
		return fmt.Errorf("protocoltest: unexpected read type %T", v)
	}
	select {
	case incoming, open := <-c.incoming:
		if !open {
			return errors.New("protocoltest: conn closed")
		}
		*msg = *incoming
		return nil
	case <-c.closed:
		return errors.New("protocoltest: conn closed")
	}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *Conn) deliver(msg *protocol.Message) {
	select {
	case c.incoming <- msg:
	case <-c.closed:
	}
}
