package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/orderharvest/internal/domain/events"
	domain "github.com/ahrav/orderharvest/internal/domain/session"
	"github.com/ahrav/orderharvest/pkg/common/logger"
)

// InvoiceCoordinator is what the service needs from the download pipeline:
// kick off a run (optionally restricted to specific order IDs), request
// cooperative cancellation, and report whether a run is active.
type InvoiceCoordinator interface {
	Begin(ctx context.Context, orderIDs []string) error
	Cancel()
	Active() bool
}

// StartRequest carries the parameters of a Start operation.
type StartRequest struct {
	Filter              domain.TimeFilter
	DownloadInvoices    bool
	ReuseExistingOrders bool
	Host                string
}

// Config holds the service's tunables.
type Config struct {
	// DefaultHost is the retail host used when a start request carries none.
	DefaultHost string
	// OrdersLimit caps how many orders a run collects. Zero means the
	// domain default.
	OrdersLimit int
	// FallbackFilterYears is how many recent years the fallback filter list
	// offers when the collector cannot be queried.
	FallbackFilterYears int
}

// Dependencies bundles the service's collaborators.
type Dependencies struct {
	Store     domain.SnapshotStore
	Settings  domain.SettingsStore
	Bridge    domain.CollectorBridge
	Notifier  domain.Notifier
	Pages     domain.PageContextProvider
	Filters   domain.FilterSource
	Publisher events.DomainEventPublisher
	Log       *logger.Logger
	Tracer    trace.Tracer
}

// Service is the session state machine: the single writer owning the active
// collection session. Every operation mutates the session under one mutex,
// persists the snapshot, and publishes a state-changed event, so concurrent
// callers and download workers only ever observe complete mutations.
type Service struct {
	cfg Config

	store     domain.SnapshotStore
	settings  domain.SettingsStore
	bridge    domain.CollectorBridge
	notifier  domain.Notifier
	pages     domain.PageContextProvider
	filters   domain.FilterSource
	publisher events.DomainEventPublisher

	downloads InvoiceCoordinator

	log    *logger.Logger
	tracer trace.Tracer
	now    func() time.Time

	mu   sync.Mutex
	sess *domain.Session
}

// NewService creates the session service with a fresh idle session. Call
// Hydrate to restore the last persisted snapshot before serving traffic, and
// AttachDownloader once the coordinator is constructed.
func NewService(cfg Config, deps Dependencies) *Service {
	if cfg.FallbackFilterYears <= 0 {
		cfg.FallbackFilterYears = 3
	}
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		settings:  deps.Settings,
		bridge:    deps.Bridge,
		notifier:  deps.Notifier,
		pages:     deps.Pages,
		filters:   deps.Filters,
		publisher: deps.Publisher,
		log:       deps.Log,
		tracer:    deps.Tracer,
		now:       time.Now,
		sess:      domain.NewSession(cfg.OrdersLimit),
	}
}

// AttachDownloader wires the invoice coordinator. Separate from NewService
// because the coordinator needs the service as its state accessor.
func (s *Service) AttachDownloader(d InvoiceCoordinator) { s.downloads = d }

// Hydrate restores the last persisted session snapshot if one exists. Load
// failures are logged and yield a fresh idle session; they are never fatal.
func (s *Service) Hydrate(ctx context.Context) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		s.log.Warn(ctx, "session snapshot load failed, starting fresh", "error", err)
		return
	}
	if snap == nil {
		return
	}
	// An in-flight download run never survives a restart.
	if snap.InvoiceDownloadsStarted() {
		snap.SetInvoiceDownloadsStarted(false)
	}
	s.mu.Lock()
	s.sess = snap
	s.mu.Unlock()
	s.log.Info(ctx, "session restored from snapshot",
		"run_id", snap.RunID(), "phase", snap.Phase(), "orders", snap.Orders().Len())
}

// Snapshot returns an independent copy of the current session.
func (s *Service) Snapshot(ctx context.Context) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSession(s.sess)
}

// Update applies a mutation under the single-writer lock, then persists and
// publishes the new state. This is the hand-off point download workers use,
// so their counter updates never interleave mid-mutation.
func (s *Service) Update(ctx context.Context, mutate func(*domain.Session)) error {
	s.mu.Lock()
	mutate(s.sess)
	s.persistLocked(ctx)
	s.mu.Unlock()
	return nil
}

// View runs a read-only callback against the current session under the lock.
func (s *Service) View(ctx context.Context, view func(*domain.Session)) error {
	s.mu.Lock()
	view(s.sess)
	s.mu.Unlock()
	return nil
}

// Start begins a collection run. Rejected with ErrAlreadyRunning while a run
// is active. The reuse path keeps the current orders and jumps straight to
// completed; the fresh path resets the session and signals the collector.
// Collector failures surface through the session's error phase, not as a
// call failure.
func (s *Service) Start(ctx context.Context, req StartRequest) (*domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.start")
	defer span.End()

	s.mu.Lock()
	if s.sess.Phase() == domain.PhaseRunning {
		s.mu.Unlock()
		return nil, domain.ErrAlreadyRunning
	}

	host := req.Host
	if host == "" {
		host = s.sess.Host()
	}
	if host == "" {
		host = s.cfg.DefaultHost
	}

	if req.ReuseExistingOrders {
		runID := s.sess.RunID()
		if runID == "" {
			runID = domain.NewRunID(s.now())
		}
		msg := reuseMessage(s.sess.Orders().Len())
		if err := s.sess.ReuseExistingOrders(runID, host, req.Filter, req.DownloadInvoices, msg); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.persistLocked(ctx)
		snap, err := cloneSession(s.sess)
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		s.log.Info(ctx, "reusing existing orders", "run_id", runID, "orders", snap.Orders().Len())
		if req.DownloadInvoices {
			s.kickDownloads(ctx, nil)
		}
		return snap, nil
	}

	runID := domain.NewRunID(s.now())
	if err := s.sess.BeginRun(runID, host, req.Filter, req.DownloadInvoices, startMessage(req.Filter)); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	limit := s.sess.OrdersLimit()
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.log.Info(ctx, "collection run starting",
		"run_id", runID, "filter", req.Filter.Value, "download_invoices", req.DownloadInvoices)

	cmd := domain.StartCommand{
		RunID:            runID,
		Filter:           req.Filter,
		DownloadInvoices: req.DownloadInvoices,
		Limit:            limit,
	}
	if err := s.bridge.Begin(ctx, cmd); err != nil {
		s.log.Error(ctx, "collector bridge begin failed", "run_id", runID, "error", err)
		_ = s.Update(ctx, func(sess *domain.Session) {
			_ = sess.Fail(err.Error(), msgCollectorUnreachable)
		})
	}
	return s.Snapshot(ctx)
}

// Progress folds one collector report into the session. It always succeeds
// from the caller's point of view; aggregation outcomes (including errors the
// payload carries) land in the session state. On leaving the running phase
// the collector's helper resources are torn down, and a completed run with
// invoice downloads requested hands off to the coordinator.
func (s *Service) Progress(ctx context.Context, p domain.ProgressUpdate) AggregationResult {
	ctx, span := s.tracer.Start(ctx, "session.progress")
	defer span.End()

	s.mu.Lock()
	res := aggregate(s.sess, p)
	runID := s.sess.RunID()
	collected := s.sess.OrdersCollected()
	wantDownloads := res.Completed &&
		s.sess.DownloadInvoicesRequested() &&
		!s.sess.InvoiceDownloadsStarted()
	s.persistLocked(ctx)
	s.mu.Unlock()

	if res.LeftRunning {
		s.log.Info(ctx, "collection run finished",
			"run_id", runID, "collected", collected, "completed", res.Completed)
		go func() {
			ctx := context.WithoutCancel(ctx)
			if err := s.bridge.Teardown(ctx); err != nil {
				s.log.Warn(ctx, "collector teardown failed", "run_id", runID, "error", err)
			}
		}()
		if res.Completed {
			s.notifyCompletion(ctx, collected)
			if wantDownloads {
				s.kickDownloads(ctx, nil)
			}
		}
	}
	return res
}

// Reset unconditionally replaces the session with a fresh idle one and stops
// any in-flight invoice downloads.
func (s *Service) Reset(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "session.reset")
	defer span.End()

	if s.downloads != nil {
		s.downloads.Cancel()
	}
	s.mu.Lock()
	s.sess = domain.NewSession(s.cfg.OrdersLimit)
	s.persistLocked(ctx)
	s.mu.Unlock()
	s.log.Info(ctx, "session reset")
	return nil
}

// CancelCollection stops an active run: the collector is told to tear down
// and the session lands in the error phase with a cancellation message.
// A no-op outside the running phase.
func (s *Service) CancelCollection(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "session.cancel_collection")
	defer span.End()

	s.mu.Lock()
	if s.sess.Phase() != domain.PhaseRunning {
		s.mu.Unlock()
		return nil
	}
	s.sess.SetHasMorePages(false)
	_ = s.sess.Fail(msgCancelledByUser, msgCancelledByUser)
	runID := s.sess.RunID()
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.log.Info(ctx, "collection cancelled by user", "run_id", runID)
	if err := s.bridge.Teardown(ctx); err != nil {
		s.log.Warn(ctx, "collector teardown failed", "run_id", runID, "error", err)
	}
	return nil
}

// CancelInvoiceDownloads requests cooperative cancellation of the download
// run. When nothing is active it only updates the status message.
func (s *Service) CancelInvoiceDownloads(ctx context.Context) error {
	active := s.downloads != nil && s.downloads.Active()
	if active {
		s.downloads.Cancel()
	}
	return s.Update(ctx, func(sess *domain.Session) {
		if active {
			sess.SetMessage(msgCancellingDownloads)
		} else {
			sess.SetMessage(msgNoDownloadsActive)
		}
	})
}

// RetryFailedInvoices re-enqueues exactly the orders with an outstanding
// invoice failure. Valid only for a completed session with no download run
// active and a non-empty failure map.
func (s *Service) RetryFailedInvoices(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "session.retry_failed_invoices")
	defer span.End()

	s.mu.Lock()
	var err error
	switch {
	case s.sess.Phase() != domain.PhaseCompleted:
		err = domain.ErrNotCompleted
	case s.sess.InvoiceDownloadsStarted() || (s.downloads != nil && s.downloads.Active()):
		err = domain.ErrDownloadsRunning
	case len(s.sess.InvoiceFailures()) == 0:
		err = domain.ErrNoFailedInvoices
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	ids := s.sess.FailedInvoiceOrderIDs()
	s.sess.SetDownloadInvoicesRequested(true)
	s.sess.SetMessage(retryMessage(len(ids)))
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.log.Info(ctx, "retrying failed invoices", "count", len(ids))
	s.kickDownloads(ctx, ids)
	return nil
}

// UpdateSettings persists user preferences.
func (s *Service) UpdateSettings(ctx context.Context, st domain.Settings) error {
	return s.settings.Save(ctx, st)
}

// Settings returns the persisted user preferences.
func (s *Service) Settings(ctx context.Context) (domain.Settings, error) {
	return s.settings.Load(ctx)
}

// TestNotification sends a test notification through the configured sink.
func (s *Service) TestNotification(ctx context.Context) error {
	return s.notifier.Notify(ctx, notificationTitle, msgNotificationsWorking)
}

// PageContext reports the active page's collection eligibility. When the
// provider is unreachable, an ineligible context carrying the default host is
// returned so callers can still render something sensible.
func (s *Service) PageContext(ctx context.Context) (domain.PageContext, error) {
	pc, err := s.pages.Context(ctx)
	if err != nil {
		s.log.Debug(ctx, "page context provider unavailable", "error", err)
		return domain.PageContext{Host: s.cfg.DefaultHost}, nil
	}
	return pc, nil
}

// AvailableFilters returns the collector's filter options, falling back to
// the built-in list when the collector cannot be queried.
func (s *Service) AvailableFilters(ctx context.Context) []domain.TimeFilter {
	filters, err := s.filters.AvailableFilters(ctx)
	if err != nil || len(filters) == 0 {
		if err != nil {
			s.log.Debug(ctx, "filter source unavailable, using fallback", "error", err)
		}
		return domain.FallbackFilters(s.now(), s.cfg.FallbackFilterYears)
	}
	return filters
}

// kickDownloads starts the coordinator in the background, detached from the
// caller's cancellation.
func (s *Service) kickDownloads(ctx context.Context, only []string) {
	if s.downloads == nil {
		return
	}
	dctx := context.WithoutCancel(ctx)
	go func() {
		if err := s.downloads.Begin(dctx, only); err != nil {
			s.log.Error(dctx, "invoice download run failed", "error", err)
		}
	}()
}

// notifyCompletion sends the one-shot completion notification when the user
// opted in and none was sent for this run yet.
func (s *Service) notifyCompletion(ctx context.Context, collected int) {
	st, err := s.settings.Load(ctx)
	if err != nil || !st.NotifyOnCompletion {
		return
	}
	s.mu.Lock()
	if s.sess.Phase() != domain.PhaseCompleted || s.sess.IsNotified() {
		s.mu.Unlock()
		return
	}
	s.sess.MarkNotified()
	s.persistLocked(ctx)
	s.mu.Unlock()

	if err := s.notifier.Notify(ctx, notificationTitle, completionNotification(collected)); err != nil {
		s.log.Warn(ctx, "completion notification failed", "error", err)
	}
}

// persistLocked saves the snapshot and publishes a state-changed event.
// Callers must hold the mutex. Persistence failures are logged, never fatal;
// the in-memory session stays authoritative.
func (s *Service) persistLocked(ctx context.Context) {
	if err := s.store.Save(ctx, s.sess); err != nil {
		s.log.Error(ctx, "session snapshot save failed", "run_id", s.sess.RunID(), "error", err)
	}
	if s.publisher != nil {
		evt := domain.NewSessionUpdatedEvent(s.sess.RunID(), s.sess.Phase())
		if err := s.publisher.PublishDomainEvent(ctx, evt, events.WithKey(s.sess.RunID())); err != nil {
			s.log.Warn(ctx, "session update publish failed", "error", err)
		}
	}
}

func cloneSession(in *domain.Session) (*domain.Session, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var out domain.Session
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
