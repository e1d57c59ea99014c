// Package eventbus bridges domain event publishing onto an events.EventBus
// transport.
package eventbus

import (
	"context"

	"github.com/ahrav/orderharvest/internal/domain/events"
)

// DomainEventPublisher wraps an EventBus so domain code can publish events
// without knowing about envelopes or transports.
type DomainEventPublisher struct {
	bus events.EventBus
}

var _ events.DomainEventPublisher = (*DomainEventPublisher)(nil)

// NewDomainEventPublisher creates a publisher backed by the given bus.
func NewDomainEventPublisher(bus events.EventBus) *DomainEventPublisher {
	return &DomainEventPublisher{bus: bus}
}

// PublishDomainEvent wraps the event in an envelope and hands it to the bus.
func (p *DomainEventPublisher) PublishDomainEvent(ctx context.Context, event events.DomainEvent, opts ...events.PublishOption) error {
	params := events.ApplyOptions(opts...)
	return p.bus.Publish(ctx, events.NewEnvelope(event, params.Key), opts...)
}
