// Package events is the in-process event bus. Domain event types live with
// the code that publishes them; this package only carries the plumbing.
package events

import (
	"context"
	"time"
)

// Event is implemented by every published event type.
type Event interface {
	// EventName uniquely identifies the event type and keys subscriptions.
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp shared by all events. Embed it and
// implement EventName on the concrete type.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps an event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events of one registered name.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to subscribed handlers.
type Bus interface {
	// Publish dispatches asynchronously; handler failures never reach the
	// publisher.
	Publish(ctx context.Context, event Event)

	// PublishSync runs handlers inline and returns their joined errors.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for the name an Event reports from
	// EventName.
	Subscribe(eventName string, handler Handler)
}
