package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/orderharvest/internal/domain/events"
	domain "github.com/ahrav/orderharvest/internal/domain/session"
)

func envelope(evt events.DomainEvent) events.EventEnvelope {
	return events.NewEnvelope(evt, "key")
}

func TestPublishDeliversToSubscribedType(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ctx := context.Background()

	var got []events.EventType
	require.NoError(t, b.Subscribe(ctx, []events.EventType{domain.EventTypeCollectorReady},
		func(ctx context.Context, evt events.EventEnvelope) error {
			got = append(got, evt.Type)
			return nil
		}))

	require.NoError(t, b.Publish(ctx, envelope(domain.NewCollectorReadyEvent("r1"))))
	require.NoError(t, b.Publish(ctx, envelope(domain.NewCollectionStopRequestedEvent("r1"))))

	assert.Equal(t, []events.EventType{domain.EventTypeCollectorReady}, got)
}

func TestPublishPropagatesHandlerError(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ctx := context.Background()

	handlerErr := errors.New("handler broke")
	require.NoError(t, b.Subscribe(ctx, []events.EventType{domain.EventTypeCollectorReady},
		func(ctx context.Context, evt events.EventEnvelope) error { return handlerErr }))

	assert.ErrorIs(t, b.Publish(ctx, envelope(domain.NewCollectorReadyEvent("r1"))), handlerErr)
}

func TestSubscriptionRemovedOnContextCancel(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	subCtx, cancel := context.WithCancel(context.Background())
	delivered := 0
	require.NoError(t, b.Subscribe(subCtx, []events.EventType{domain.EventTypeCollectorReady},
		func(ctx context.Context, evt events.EventEnvelope) error {
			delivered++
			return nil
		}))

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, envelope(domain.NewCollectorReadyEvent("r1"))))
	require.Equal(t, 1, delivered)
	cancel()

	// Removal happens asynchronously after cancellation: eventually a
	// publish stops reaching the handler.
	require.Eventually(t, func() bool {
		before := delivered
		_ = b.Publish(ctx, envelope(domain.NewCollectorReadyEvent("r2")))
		return delivered == before
	}, time.Second, 10*time.Millisecond)
}

func TestClosedBusRejectsTraffic(t *testing.T) {
	b := NewBroker()
	require.NoError(t, b.Close())
	ctx := context.Background()

	assert.Error(t, b.Publish(ctx, envelope(domain.NewCollectorReadyEvent("r1"))))
	assert.Error(t, b.Subscribe(ctx, []events.EventType{domain.EventTypeCollectorReady},
		func(ctx context.Context, evt events.EventEnvelope) error { return nil }))
}
