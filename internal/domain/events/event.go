package events

import (
	"context"
	"time"
)

// DomainEvent is implemented by every event the domain emits. Concrete events
// carry their own payload fields; the interface only exposes what transports
// need for routing and ordering.
type DomainEvent interface {
	// EventType identifies the category of this event for routing and handling.
	EventType() EventType
	// OccurredAt records when the event happened.
	OccurredAt() time.Time
}

// EventEnvelope is the transport-level wrapper around a DomainEvent.
type EventEnvelope struct {
	// Type identifies the category of this event for routing and handling.
	Type EventType

	// Key enables consistent event routing, typically containing a business
	// identifier like a tracked item id that events can be partitioned by.
	Key string

	// Headers contain metadata key-value pairs attached to the event.
	Headers map[string]string

	// Timestamp records when this event was created.
	Timestamp time.Time

	// Payload contains the actual event data. The concrete type depends on the
	// EventType.
	Payload any
}

// HandlerFunc processes a single event envelope delivered by an EventBus.
type HandlerFunc func(ctx context.Context, evt EventEnvelope) error
