// Package collector implements the collector bridge over the event bus: the
// session core publishes start/stop signals and the page-collection process
// answers with readiness and progress.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/orderharvest/internal/domain/events"
	domain "github.com/ahrav/orderharvest/internal/domain/session"
	"github.com/ahrav/orderharvest/pkg/common/logger"
)

// DefaultReadyWait bounds how long Begin waits for the collector to attach.
// A stuck helper-page load would otherwise deadlock the run indefinitely.
const DefaultReadyWait = 10 * time.Second

// EventBusBridge is a domain.CollectorBridge backed by the event bus.
type EventBusBridge struct {
	publisher events.DomainEventPublisher
	readyWait time.Duration

	mu         sync.Mutex
	readyChans map[string]chan struct{}
	activeRun  string

	log    *logger.Logger
	tracer trace.Tracer
}

var _ domain.CollectorBridge = (*EventBusBridge)(nil)

// NewEventBusBridge creates the bridge and subscribes to collector-ready
// events on the given bus. The subscription lives as long as ctx.
func NewEventBusBridge(
	ctx context.Context,
	bus events.EventBus,
	publisher events.DomainEventPublisher,
	readyWait time.Duration,
	log *logger.Logger,
	tracer trace.Tracer,
) (*EventBusBridge, error) {
	if readyWait <= 0 {
		readyWait = DefaultReadyWait
	}
	b := &EventBusBridge{
		publisher:  publisher,
		readyWait:  readyWait,
		readyChans: make(map[string]chan struct{}),
		log:        log,
		tracer:     tracer,
	}
	err := bus.Subscribe(ctx, []events.EventType{domain.EventTypeCollectorReady},
		func(ctx context.Context, evt events.EventEnvelope) error {
			ready, ok := evt.Payload.(domain.CollectorReadyEvent)
			if !ok {
				return fmt.Errorf("unexpected payload type for %s event", evt.Type)
			}
			b.signalReady(ready.RunID)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("subscribing to collector ready events: %w", err)
	}
	return b, nil
}

// Begin publishes the collection request and waits (bounded) for the
// collector to acknowledge the run.
func (b *EventBusBridge) Begin(ctx context.Context, cmd domain.StartCommand) error {
	ctx, span := b.tracer.Start(ctx, "collector_bridge.begin")
	defer span.End()

	ready := b.registerRun(cmd.RunID)
	defer b.unregisterRun(cmd.RunID)

	evt := domain.NewCollectionRequestedEvent(cmd.RunID, cmd.Filter, cmd.DownloadInvoices, cmd.Limit)
	if err := b.publisher.PublishDomainEvent(ctx, evt, events.WithKey(cmd.RunID)); err != nil {
		return fmt.Errorf("publishing collection request: %w", err)
	}

	select {
	case <-ready:
		b.log.Debug(ctx, "collector attached", "run_id", cmd.RunID)
		return nil
	case <-time.After(b.readyWait):
		return fmt.Errorf("timed out waiting for collector to attach (%s)", b.readyWait)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Teardown tells the collector to release helper resources for the active
// run. Safe to call when no run is active.
func (b *EventBusBridge) Teardown(ctx context.Context) error {
	b.mu.Lock()
	runID := b.activeRun
	b.activeRun = ""
	b.mu.Unlock()
	if runID == "" {
		return nil
	}
	evt := domain.NewCollectionStopRequestedEvent(runID)
	if err := b.publisher.PublishDomainEvent(ctx, evt, events.WithKey(runID)); err != nil {
		return fmt.Errorf("publishing collection stop: %w", err)
	}
	return nil
}

func (b *EventBusBridge) registerRun(runID string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{})
	b.readyChans[runID] = ch
	b.activeRun = runID
	return ch
}

func (b *EventBusBridge) unregisterRun(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.readyChans, runID)
}

func (b *EventBusBridge) signalReady(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.readyChans[runID]; ok {
		close(ch)
		delete(b.readyChans, runID)
	}
}
