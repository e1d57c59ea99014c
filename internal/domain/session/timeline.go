package session

import "time"

// TimeProvider is an interface that provides a Now method to get the current time.
type TimeProvider interface {
	Now() time.Time
}

// Real implementation for production.
type realTimeProvider struct{}

func (r *realTimeProvider) Now() time.Time { return time.Now() }

// Timeline tracks temporal aspects of a collection session.
type Timeline struct {
	startedAt    time.Time
	completedAt  time.Time
	lastUpdate   time.Time
	notifiedAt   time.Time
	timeProvider TimeProvider
}

// NewTimeline creates a new Timeline instance.
func NewTimeline(timeProvider TimeProvider) *Timeline {
	return &Timeline{
		lastUpdate:   timeProvider.Now(),
		timeProvider: timeProvider,
	}
}

// ReconstructTimeline restores a timeline from persisted timestamps.
func ReconstructTimeline(startedAt, completedAt, lastUpdate, notifiedAt time.Time) *Timeline {
	return &Timeline{
		startedAt:    startedAt,
		completedAt:  completedAt,
		lastUpdate:   lastUpdate,
		notifiedAt:   notifiedAt,
		timeProvider: &realTimeProvider{},
	}
}

// StartedAt returns the time the run started.
func (t *Timeline) StartedAt() time.Time { return t.startedAt }

// CompletedAt returns the time the run completed.
func (t *Timeline) CompletedAt() time.Time { return t.completedAt }

// LastUpdate returns the time the session was last mutated.
func (t *Timeline) LastUpdate() time.Time { return t.lastUpdate }

// NotifiedAt returns the time a completion notification was sent.
func (t *Timeline) NotifiedAt() time.Time { return t.notifiedAt }

// MarkStarted records the run start time.
func (t *Timeline) MarkStarted() {
	t.startedAt = t.timeProvider.Now()
	t.UpdateLastUpdate()
}

// MarkCompleted records completion time.
func (t *Timeline) MarkCompleted() {
	t.completedAt = t.timeProvider.Now()
	t.UpdateLastUpdate()
}

// MarkNotified records that the completion notification was sent.
func (t *Timeline) MarkNotified() {
	t.notifiedAt = t.timeProvider.Now()
	t.UpdateLastUpdate()
}

// UpdateLastUpdate updates the last update timestamp.
func (t *Timeline) UpdateLastUpdate() {
	t.lastUpdate = t.timeProvider.Now()
}

// IsCompleted checks if the timeline has been marked as completed.
func (t *Timeline) IsCompleted() bool { return !t.completedAt.IsZero() }

// IsNotified checks if a completion notification has been recorded.
func (t *Timeline) IsNotified() bool { return !t.notifiedAt.IsZero() }

func (t *Timeline) withTimeProvider(tp TimeProvider) *Timeline {
	t.timeProvider = tp
	return t
}
