package collector

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/orderharvest/internal/domain/events"
	domain "github.com/ahrav/orderharvest/internal/domain/session"
	"github.com/ahrav/orderharvest/internal/infra/eventbus"
	"github.com/ahrav/orderharvest/internal/infra/eventbus/memory"
	"github.com/ahrav/orderharvest/pkg/common/logger"
)

func newTestBridge(t *testing.T, wait time.Duration) (*EventBusBridge, *memory.Broker) {
	t.Helper()
	bus := memory.NewBroker()
	b, err := NewEventBusBridge(
		context.Background(),
		bus,
		eventbus.NewDomainEventPublisher(bus),
		wait,
		logger.New(io.Discard, logger.LevelDebug, "test", nil),
		noop.NewTracerProvider().Tracer("test"),
	)
	require.NoError(t, err)
	return b, bus
}

// echoCollector acks every collection request it sees, like an attached
// page collector would.
func echoCollector(t *testing.T, bus *memory.Broker) *[]domain.CollectionRequestedEvent {
	t.Helper()
	var seen []domain.CollectionRequestedEvent
	pub := eventbus.NewDomainEventPublisher(bus)
	err := bus.Subscribe(context.Background(), []events.EventType{domain.EventTypeCollectionRequested},
		func(ctx context.Context, evt events.EventEnvelope) error {
			req := evt.Payload.(domain.CollectionRequestedEvent)
			seen = append(seen, req)
			return pub.PublishDomainEvent(ctx, domain.NewCollectorReadyEvent(req.RunID), events.WithKey(req.RunID))
		})
	require.NoError(t, err)
	return &seen
}

func TestBeginSucceedsWhenCollectorAttaches(t *testing.T) {
	b, bus := newTestBridge(t, time.Second)
	seen := echoCollector(t, bus)

	cmd := domain.StartCommand{
		RunID:            "ohv-20260901-120000",
		Filter:           domain.TimeFilter{Value: "last30"},
		DownloadInvoices: true,
		Limit:            1000,
	}
	require.NoError(t, b.Begin(context.Background(), cmd))

	require.Len(t, *seen, 1)
	assert.Equal(t, cmd.RunID, (*seen)[0].RunID)
	assert.Equal(t, 1000, (*seen)[0].Limit)
}

func TestBeginTimesOutWithoutCollector(t *testing.T) {
	b, _ := newTestBridge(t, 30*time.Millisecond)

	err := b.Begin(context.Background(), domain.StartCommand{RunID: "r1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out waiting for collector")
}

func TestBeginHonorsContextCancellation(t *testing.T) {
	b, _ := newTestBridge(t, 10*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := b.Begin(ctx, domain.StartCommand{RunID: "r1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTeardownPublishesStopForActiveRun(t *testing.T) {
	b, bus := newTestBridge(t, time.Second)
	echoCollector(t, bus)

	var stops []string
	require.NoError(t, bus.Subscribe(context.Background(), []events.EventType{domain.EventTypeCollectionStopRequested},
		func(ctx context.Context, evt events.EventEnvelope) error {
			stops = append(stops, evt.Payload.(domain.CollectionStopRequestedEvent).RunID)
			return nil
		}))

	require.NoError(t, b.Begin(context.Background(), domain.StartCommand{RunID: "r1"}))
	require.NoError(t, b.Teardown(context.Background()))
	assert.Equal(t, []string{"r1"}, stops)

	// A second teardown with no active run publishes nothing.
	require.NoError(t, b.Teardown(context.Background()))
	assert.Len(t, stops, 1)
}
