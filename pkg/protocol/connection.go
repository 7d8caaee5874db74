package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Connection owns the transport to the browser and routes traffic: command
// responses back to their callers by id, events to the session they belong
// to. One Connection serves the root session plus any attached sub-sessions.
type Connection struct {
	conn   Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[int64]chan *Message
	sessions map[string]*Session
	root     *Session

	nextID    atomic.Int64
	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to a remote-debugging websocket endpoint.
func Dial(ctx context.Context, wsURL string) (*Connection, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("protocol: dial %s: %w", wsURL, err)
	}
	return NewConnection(conn), nil
}

// NewConnection wraps an established transport and starts its read loop.
func NewConnection(conn Conn) *Connection {
	c := &Connection{
		conn:     conn,
		logger:   slog.Default().With("component", "protocol"),
		pending:  make(map[int64]chan *Message),
		sessions: make(map[string]*Session),
		closed:   make(chan struct{}),
	}
	c.root = newSession(c, "")
	c.sessions[""] = c.root
	go c.readLoop()
	return c
}

// RootSession returns the session scoped to the main target.
func (c *Connection) RootSession() *Session {
	return c.root
}

// AttachedSession returns the session scoped to the given sub-target,
// creating it on first use. Events carrying that session id are delivered to
// it; the root session's catch-all listeners see them too, annotated.
func (c *Connection) AttachedSession(sessionID string) *Session {
	if sessionID == "" {
		return c.root
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[sessionID]; ok {
		return s
	}
	s := newSession(c, sessionID)
	c.sessions[sessionID] = s
	return s
}

// Close tears down the transport. Pending commands fail with
// ErrConnectionClosed.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()

		c.mu.Lock()
		for id, ch := range c.pending {
			delete(c.pending, id)
			close(ch)
		}
		for _, s := range c.sessions {
			s.emitter.removeAll()
		}
		c.mu.Unlock()
	})
	return err
}

func (c *Connection) closedErr() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Connection) readLoop() {
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if !c.closedErr() {
				c.logger.Debug("read loop terminated", "error", err)
				c.Close()
			}
			return
		}
		if msg.ID != 0 {
			c.resolve(&msg)
			continue
		}
		if msg.Method != "" {
			c.dispatch(Event{Method: msg.Method, Params: msg.Params, SessionID: msg.SessionID})
		}
	}
}

func (c *Connection) resolve(msg *Message) {
	c.mu.Lock()
	ch, ok := c.pending[msg.ID]
	if ok {
		delete(c.pending, msg.ID)
	}
	c.mu.Unlock()
	if ok {
		ch <- msg
	}
}

func (c *Connection) dispatch(ev Event) {
	c.mu.Lock()
	target := c.sessions[ev.SessionID]
	root := c.root
	c.mu.Unlock()

	if target != nil {
		target.emitter.emit(ev)
	}
	// Named listeners fire only on the owning session. The root catch-all
	// still observes sub-session events; the session id annotation
	// distinguishes iframe-scoped events from main-frame ones.
	if target != root {
		root.emitter.emitAny(ev)
	}
}

// send issues one command and waits for its response, the timeout, caller
// cancellation, or connection shutdown, whichever happens first.
func (c *Connection) send(ctx context.Context, sessionID, method string, params []byte, timeout time.Duration) ([]byte, error) {
	if c.closedErr() {
		return nil, ErrConnectionClosed
	}

	id := c.nextID.Add(1)
	ch := make(chan *Message, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	msg := Message{ID: id, SessionID: sessionID, Method: method, Params: params}
	c.writeMu.Lock()
	err := c.conn.WriteJSON(&msg)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("protocol: write %s: %w", method, err)
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, ErrConnectionClosed
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("protocol: %s: %w", method, resp.Error)
		}
		return resp.Result, nil
	case <-timer:
		c.forget(id)
		return nil, &TimeoutError{Method: method, Timeout: timeout}
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrConnectionClosed
	}
}

func (c *Connection) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// detachSession drops a sub-session from routing after disposal.
func (c *Connection) detachSession(sessionID string) {
	if sessionID == "" {
		return
	}
	c.mu.Lock()
	delete(c.sessions, sessionID)
	c.mu.Unlock()
}
