package bus

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// MemoryBus is the in-process MessageBus. It supports trailing wildcards and
// drops messages to slow subscribers rather than blocking the publisher.
type MemoryBus struct {
	mu            sync.RWMutex
	subscriptions map[string][]*memorySubscription
	closed        atomic.Bool
}

// NewMemoryBus creates a new in-memory bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subscriptions: make(map[string][]*memorySubscription)}
}

func (b *MemoryBus) Publish(ctx context.Context, subject string, data []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for pattern, subs := range b.subscriptions {
		if !matchSubject(pattern, subject) {
			continue
		}
		for _, sub := range subs {
			if sub.closed.Load() {
				continue
			}
			select {
			case sub.messages <- memoryMessage{subject: subject, data: data}:
			default:
				// Buffer full; drop rather than stall the orchestrator.
			}
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, subject string, handler Handler) (Subscription, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	sub := &memorySubscription{
		id:       uuid.NewString(),
		subject:  subject,
		messages: make(chan memoryMessage, 256),
		handler:  handler,
		bus:      b,
	}
	b.mu.Lock()
	b.subscriptions[subject] = append(b.subscriptions[subject], sub)
	b.mu.Unlock()

	go sub.run(ctx)
	return sub, nil
}

func (b *MemoryBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subscriptions {
		for _, sub := range subs {
			sub.close()
		}
	}
	b.subscriptions = make(map[string][]*memorySubscription)
	return nil
}

type memoryMessage struct {
	subject string
	data    []byte
}

type memorySubscription struct {
	id       string
	subject  string
	messages chan memoryMessage
	handler  Handler
	bus      *MemoryBus
	closed   atomic.Bool
}

func (s *memorySubscription) run(ctx context.Context) {
	for {
		select {
		case msg, ok := <-s.messages:
			if !ok {
				return
			}
			s.handler(msg.subject, msg.data)
		case <-ctx.Done():
			s.Unsubscribe()
			return
		}
	}
}

func (s *memorySubscription) Unsubscribe() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.bus.mu.Lock()
	subs := s.bus.subscriptions[s.subject]
	for i, sub := range subs {
		if sub.id == s.id {
			s.bus.subscriptions[s.subject] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	s.bus.mu.Unlock()
	close(s.messages)
	return nil
}

func (s *memorySubscription) close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.messages)
	}
}

func (s *memorySubscription) Subject() string {
	return s.subject
}

// matchSubject supports exact matches and a trailing "*" segment wildcard.
func matchSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(subject, prefix)
	}
	return false
}
