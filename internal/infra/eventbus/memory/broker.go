// Package memory provides an in-memory implementation of the event bus.
// It offers a lightweight, non-persistent broker suitable for single-process
// deployments, testing, and development environments where durability is not
// required.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/ahrav/orderharvest/internal/domain/events"
)

type subscriber struct {
	id      int
	handler events.HandlerFunc
}

// Broker is an in-memory events.EventBus. Handlers are invoked synchronously
// in subscription order; a handler error stops delivery and propagates to the
// publisher.
type Broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[events.EventType][]subscriber
	closed bool
}

// NewBroker creates an empty in-memory event bus.
func NewBroker() *Broker {
	return &Broker{subs: make(map[events.EventType][]subscriber)}
}

// Publish delivers the envelope to every handler subscribed to its type.
// The subscriber list is copied before iteration so handlers can subscribe or
// unsubscribe without deadlocking the bus.
func (b *Broker) Publish(ctx context.Context, evt events.EventEnvelope, _ ...events.PublishOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.New("event bus is closed")
	}
	subs := make([]subscriber, len(b.subs[evt.Type]))
	copy(subs, b.subs[evt.Type])
	b.mu.RUnlock()

	for _, s := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.handler(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers a handler for the given event types. The subscription
// lives until the context is cancelled.
func (b *Broker) Subscribe(ctx context.Context, eventTypes []events.EventType, handler events.HandlerFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("event bus is closed")
	}
	b.nextID++
	id := b.nextID
	for _, et := range eventTypes {
		b.subs[et] = append(b.subs[et], subscriber{id: id, handler: handler})
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, et := range eventTypes {
			list := b.subs[et]
			for i, s := range list {
				if s.id == id {
					b.subs[et] = append(list[:i], list[i+1:]...)
					break
				}
			}
		}
	}()
	return nil
}

// Close shuts the bus down; further publishes and subscriptions fail.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[events.EventType][]subscriber)
	return nil
}
