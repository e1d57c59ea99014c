package session

import (
	"time"

	"github.com/ahrav/orderharvest/internal/domain/events"
)

// Event types relevant to collection session lifecycle.
const (
	EventTypeCollectionRequested     events.EventType = "CollectionRequested"
	EventTypeCollectionStopRequested events.EventType = "CollectionStopRequested"
	EventTypeCollectorReady          events.EventType = "CollectorReady"
	EventTypeSessionUpdated          events.EventType = "SessionUpdated"
)

// CollectionRequestedEvent signals that a new collection run should begin.
// The collector picks it up, attaches to the order-history pages, and starts
// reporting progress for the given run.
type CollectionRequestedEvent struct {
	occurredAt time.Time

	RunID            string
	Filter           TimeFilter
	DownloadInvoices bool
	Limit            int
}

// NewCollectionRequestedEvent creates a new collection request event.
func NewCollectionRequestedEvent(runID string, filter TimeFilter, downloadInvoices bool, limit int) CollectionRequestedEvent {
	return CollectionRequestedEvent{
		occurredAt:       time.Now(),
		RunID:            runID,
		Filter:           filter,
		DownloadInvoices: downloadInvoices,
		Limit:            limit,
	}
}

func (e CollectionRequestedEvent) EventType() events.EventType { return EventTypeCollectionRequested }
func (e CollectionRequestedEvent) OccurredAt() time.Time       { return e.occurredAt }

// CollectionStopRequestedEvent tells the collector to tear down any helper
// resources for the run; the session no longer needs pages scraped.
type CollectionStopRequestedEvent struct {
	occurredAt time.Time

	RunID string
}

// NewCollectionStopRequestedEvent creates a new stop request event.
func NewCollectionStopRequestedEvent(runID string) CollectionStopRequestedEvent {
	return CollectionStopRequestedEvent{occurredAt: time.Now(), RunID: runID}
}

func (e CollectionStopRequestedEvent) EventType() events.EventType {
	return EventTypeCollectionStopRequested
}
func (e CollectionStopRequestedEvent) OccurredAt() time.Time { return e.occurredAt }

// CollectorReadyEvent is the collector's acknowledgement that it has attached
// to the run and will begin reporting progress.
type CollectorReadyEvent struct {
	occurredAt time.Time

	RunID string
}

// NewCollectorReadyEvent creates a new collector-ready event.
func NewCollectorReadyEvent(runID string) CollectorReadyEvent {
	return CollectorReadyEvent{occurredAt: time.Now(), RunID: runID}
}

func (e CollectorReadyEvent) EventType() events.EventType { return EventTypeCollectorReady }
func (e CollectorReadyEvent) OccurredAt() time.Time       { return e.occurredAt }

// SessionUpdatedEvent carries a state snapshot to any display surface
// listening for changes.
type SessionUpdatedEvent struct {
	occurredAt time.Time

	RunID string
	Phase Phase
}

// NewSessionUpdatedEvent creates a new session-updated event.
func NewSessionUpdatedEvent(runID string, phase Phase) SessionUpdatedEvent {
	return SessionUpdatedEvent{occurredAt: time.Now(), RunID: runID, Phase: phase}
}

func (e SessionUpdatedEvent) EventType() events.EventType { return EventTypeSessionUpdated }
func (e SessionUpdatedEvent) OccurredAt() time.Time       { return e.occurredAt }
