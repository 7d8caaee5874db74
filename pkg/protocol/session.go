package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCommandTimeout bounds how long a command waits for its response
// unless a one-shot override is set.
const DefaultCommandTimeout = 30 * time.Second

// NoTimeout, passed to SetNextTimeout, disables the timeout window for the
// next command only.
const NoTimeout = time.Duration(-1)

// Session scopes commands and events to one debugging target. The root
// session talks to the main target; sub-sessions are created per attached
// target (iframes, workers).
type Session struct {
	conn    *Connection
	id      string
	emitter *emitter

	timeoutMu      sync.Mutex
	defaultTimeout time.Duration
	nextTimeout    *time.Duration

	disposed atomic.Bool
}

func newSession(conn *Connection, id string) *Session {
	return &Session{conn: conn, id: id, emitter: newEmitter()}
}

// ID returns the sub-session id, empty for the root session.
func (s *Session) ID() string {
	return s.id
}

// SetDefaultTimeout replaces the timeout window applied to every subsequent
// Send that has no one-shot override. Zero or negative restores
// DefaultCommandTimeout.
func (s *Session) SetDefaultTimeout(d time.Duration) {
	s.timeoutMu.Lock()
	defer s.timeoutMu.Unlock()
	if d <= 0 {
		d = 0
	}
	s.defaultTimeout = d
}

// SetNextTimeout overrides the timeout window for the next Send only.
// Passing NoTimeout disables the window entirely for that one command. The
// override is consumed by the next Send and then reset.
func (s *Session) SetNextTimeout(d time.Duration) {
	s.timeoutMu.Lock()
	defer s.timeoutMu.Unlock()
	s.nextTimeout = &d
}

// consumeTimeout returns the effective timeout for the next command and
// clears any one-shot override.
func (s *Session) consumeTimeout() time.Duration {
	s.timeoutMu.Lock()
	defer s.timeoutMu.Unlock()
	if s.nextTimeout != nil {
		d := *s.nextTimeout
		s.nextTimeout = nil
		if d == NoTimeout {
			return 0
		}
		return d
	}
	if s.defaultTimeout > 0 {
		return s.defaultTimeout
	}
	return DefaultCommandTimeout
}

// Send issues a protocol command and returns the raw result. It fails with a
// *TimeoutError when no response arrives within the timeout window.
func (s *Session) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if s.disposed.Load() {
		return nil, ErrSessionDisposed
	}
	var encoded []byte
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode %s params: %w", method, err)
		}
		encoded = data
	}
	return s.conn.send(ctx, s.id, method, encoded, s.consumeTimeout())
}

// SendAndDecode issues a command and decodes the result into out.
func (s *Session) SendAndDecode(ctx context.Context, method string, params, out any) error {
	raw, err := s.Send(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("protocol: decode %s result: %w", method, err)
	}
	return nil
}

// On registers a handler for the named event and returns a removal func.
func (s *Session) On(event string, fn Handler) func() {
	return s.emitter.on(event, fn, false)
}

// Once registers a handler invoked for the first matching event only.
func (s *Session) Once(event string, fn Handler) func() {
	return s.emitter.on(event, fn, true)
}

// Off removes every handler registered for the named event.
func (s *Session) Off(event string) {
	s.emitter.off(event)
}

// OnAny registers a catch-all handler that receives every event this session
// observes, annotated with the originating sub-session id.
func (s *Session) OnAny(fn Handler) func() {
	return s.emitter.onAny(fn)
}

// Dispose removes all listeners and detaches the session. Disposing a
// sub-session detaches it from its target; disposing the root session closes
// the whole connection. Dispose is idempotent.
func (s *Session) Dispose(ctx context.Context) error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}
	s.emitter.removeAll()
	if s.id == "" {
		return s.conn.Close()
	}
	s.conn.detachSession(s.id)
	_, err := s.conn.send(ctx, "", "Target.detachFromTarget",
		mustEncode(map[string]string{"sessionId": s.id}), DefaultCommandTimeout)
	return err
}

func mustEncode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("protocol: encode: %v", err))
	}
	return data
}
