// Package bus broadcasts run lifecycle events to external consumers. The
// default implementation is in-memory; a NATS-backed one exists for
// embedders that watch gather runs from other processes.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrClosed is returned when operating on a closed bus or subscription.
var ErrClosed = errors.New("bus or subscription closed")

// Run lifecycle subjects. Navigation subjects carry the navigation id as a
// trailing token, so "pharos.navigation.*" matches all of them.
const (
	SubjectRunStarted      = "pharos.run.started"
	SubjectRunFinished     = "pharos.run.finished"
	SubjectNavigationBase  = "pharos.navigation."
	SubjectPhaseBase       = "pharos.phase."
	SubjectCollectorFailed = "pharos.collector.failed"
)

// Event is the payload published on every subject.
type Event struct {
	RunID      string    `json:"runId"`
	Subject    string    `json:"-"`
	URL        string    `json:"url,omitempty"`
	Mode       string    `json:"mode,omitempty"`
	Navigation string    `json:"navigation,omitempty"`
	Phase      string    `json:"phase,omitempty"`
	Collector  string    `json:"collector,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// MessageBus is the publishing side of run event distribution.
// Implementations must be safe for concurrent use.
type MessageBus interface {
	// Publish sends a message to all subscribers of the given subject.
	// Returns immediately; does not wait for delivery.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// Supports trailing wildcards: "pharos.navigation.*".
	Subscribe(ctx context.Context, subject string, handler Handler) (Subscription, error)

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Handler processes one incoming message.
type Handler func(subject string, data []byte)

// Subscription is an active subscription that can be cancelled.
type Subscription interface {
	Unsubscribe() error
	Subject() string
}

// PublishEvent marshals and publishes a lifecycle event. A nil bus is valid
// and publishes nothing.
func PublishEvent(ctx context.Context, b MessageBus, subject string, ev Event) error {
	if b == nil {
		return nil
	}
	ev.Timestamp = time.Now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.Publish(ctx, subject, data)
}
