package events

import "context"

// HandlerFunc processes a single event delivered by the bus.
type HandlerFunc func(ctx context.Context, evt EventEnvelope) error

// EventHandler defines the contract for components that process domain events.
// Each handler must declare which event types it can process and implement the
// logic to handle those events.
type EventHandler interface {
	// HandleEvent processes a domain event and returns an error if processing fails.
	HandleEvent(ctx context.Context, evt EventEnvelope) error

	// SupportedEvents returns the event types this handler can process.
	SupportedEvents() []EventType
}
