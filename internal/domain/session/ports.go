package session

import "context"

// StartCommand carries everything the collector needs to begin a run.
type StartCommand struct {
	RunID            string
	Filter           TimeFilter
	DownloadInvoices bool
	Limit            int
}

// CollectorBridge is the contract the core expects from the page-collection
// process. Begin blocks until the collector acknowledges the run or a bounded
// readiness wait elapses. Teardown asks the collector to release its helper
// resources; it is safe to call when no run is active.
type CollectorBridge interface {
	Begin(ctx context.Context, cmd StartCommand) error
	Teardown(ctx context.Context) error
}

// SnapshotStore persists the whole session as an opaque snapshot. Save
// overwrites the previous snapshot wholesale; there is no incremental format.
// Load returns (nil, nil) when no snapshot exists.
type SnapshotStore interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context) (*Session, error)
	Clear(ctx context.Context) error
}

// Settings holds user preferences that survive resets.
type Settings struct {
	NotifyOnCompletion bool `json:"notify_on_completion"`
}

// SettingsStore persists user settings separately from the session snapshot.
type SettingsStore interface {
	Save(ctx context.Context, s Settings) error
	Load(ctx context.Context) (Settings, error)
}

// Notifier delivers a completion (or test) notification to the user.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// PageContext describes whether the active source page is eligible for
// collection and which retail host it belongs to.
type PageContext struct {
	Eligible bool   `json:"eligible"`
	Host     string `json:"host,omitempty"`
	URL      string `json:"url,omitempty"`
}

// PageContextProvider reports the active page's collection eligibility.
type PageContextProvider interface {
	Context(ctx context.Context) (PageContext, error)
}

// FilterSource exposes the time-range filters the collector can see on the
// order-history page. Implementations may be unreachable; callers fall back
// to FallbackFilters.
type FilterSource interface {
	AvailableFilters(ctx context.Context) ([]TimeFilter, error)
}
