package events

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents something that happened in the domain. Concrete
// event types carry their own payload fields and satisfy this interface so
// they can flow through the publishing infrastructure without the transport
// knowing their shape.
type DomainEvent interface {
	// EventType identifies the category of this event for routing and handling.
	EventType() EventType

	// OccurredAt records when the event was created.
	OccurredAt() time.Time
}

// EventEnvelope wraps a domain event with transport-level metadata as it
// moves across the event bus.
type EventEnvelope struct {
	// ID uniquely identifies this envelope instance.
	ID uuid.UUID

	// Type identifies the category of the wrapped event.
	Type EventType

	// Key enables consistent event routing, typically containing a business
	// identifier like a run ID that events can be grouped by.
	Key string

	// Timestamp records when this envelope was created.
	Timestamp time.Time

	// Payload contains the actual domain event. The concrete type depends
	// on the EventType.
	Payload any
}

// NewEnvelope wraps a domain event for transport.
func NewEnvelope(evt DomainEvent, key string) EventEnvelope {
	return EventEnvelope{
		ID:        uuid.New(),
		Type:      evt.EventType(),
		Key:       key,
		Timestamp: time.Now(),
		Payload:   evt,
	}
}
