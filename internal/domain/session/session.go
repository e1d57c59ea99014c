package session

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/ahrav/orderharvest/internal/domain/orders"
)

// DefaultOrdersLimit caps how many orders a single run will collect when the
// caller does not override it.
const DefaultOrdersLimit = 1000

// Session is the aggregate root for one logical collection run: the orders
// gathered so far, progress counters, the invoice-download substate, and the
// lifecycle phase. Exactly one Session is active at a time; all mutation goes
// through its methods so the invariants (phase transitions, count clamps,
// single failure entry per order) hold after every update.
type Session struct {
	phase  Phase
	runID  string
	host   string
	filter TimeFilter

	orders          *orders.Set
	ordersCollected int
	ordersLimit     int
	ordersInRange   int
	pagesScraped    int
	hasMorePages    bool

	downloadInvoicesRequested bool
	invoicesQueued            int
	invoicesDownloaded        int
	invoiceErrors             int
	invoiceDownloadsStarted   bool
	lastInvoiceError          string
	lastInvoiceOrderID        string
	lastInvoiceOrderURL       string
	invoiceFailures           map[string]InvoiceFailure

	message      string
	errorMessage string

	timeline *Timeline
}

// NewSession creates an empty idle session with the given order limit.
// A non-positive limit falls back to DefaultOrdersLimit.
func NewSession(ordersLimit int) *Session {
	return NewSessionWithTimeProvider(ordersLimit, &realTimeProvider{})
}

// NewSessionWithTimeProvider creates a session with an injectable clock.
func NewSessionWithTimeProvider(ordersLimit int, tp TimeProvider) *Session {
	if ordersLimit <= 0 {
		ordersLimit = DefaultOrdersLimit
	}
	return &Session{
		phase:           PhaseIdle,
		orders:          orders.NewSet(),
		ordersLimit:     ordersLimit,
		invoiceFailures: make(map[string]InvoiceFailure),
		timeline:        NewTimeline(tp),
	}
}

// ReconstructSession restores a session from persisted state without
// enforcing transition rules. Used when hydrating from a snapshot.
func ReconstructSession(
	phase Phase,
	runID, host string,
	filter TimeFilter,
	set *orders.Set,
	ordersCollected, ordersLimit, ordersInRange, pagesScraped int,
	hasMorePages, downloadInvoicesRequested bool,
	invoicesQueued, invoicesDownloaded, invoiceErrors int,
	invoiceDownloadsStarted bool,
	lastInvoiceError, lastInvoiceOrderID, lastInvoiceOrderURL string,
	invoiceFailures map[string]InvoiceFailure,
	message, errorMessage string,
	timeline *Timeline,
) *Session {
	if set == nil {
		set = orders.NewSet()
	}
	if ordersLimit <= 0 {
		ordersLimit = DefaultOrdersLimit
	}
	if invoiceFailures == nil {
		invoiceFailures = make(map[string]InvoiceFailure)
	}
	if timeline == nil {
		timeline = NewTimeline(&realTimeProvider{})
	}
	return &Session{
		phase:                     phase,
		runID:                     runID,
		host:                      host,
		filter:                    filter,
		orders:                    set,
		ordersCollected:           ordersCollected,
		ordersLimit:               ordersLimit,
		ordersInRange:             ordersInRange,
		pagesScraped:              pagesScraped,
		hasMorePages:              hasMorePages,
		downloadInvoicesRequested: downloadInvoicesRequested,
		invoicesQueued:            invoicesQueued,
		invoicesDownloaded:        invoicesDownloaded,
		invoiceErrors:             invoiceErrors,
		invoiceDownloadsStarted:   invoiceDownloadsStarted,
		lastInvoiceError:          lastInvoiceError,
		lastInvoiceOrderID:        lastInvoiceOrderID,
		lastInvoiceOrderURL:       lastInvoiceOrderURL,
		invoiceFailures:           invoiceFailures,
		message:                   message,
		errorMessage:              errorMessage,
		timeline:                  timeline,
	}
}

// Getters.
func (s *Session) Phase() Phase                    { return s.phase }
func (s *Session) RunID() string                   { return s.runID }
func (s *Session) Host() string                    { return s.host }
func (s *Session) Filter() TimeFilter              { return s.filter }
func (s *Session) Orders() *orders.Set             { return s.orders }
func (s *Session) OrdersCollected() int            { return s.ordersCollected }
func (s *Session) OrdersLimit() int                { return s.ordersLimit }
func (s *Session) OrdersInRange() int              { return s.ordersInRange }
func (s *Session) PagesScraped() int               { return s.pagesScraped }
func (s *Session) HasMorePages() bool              { return s.hasMorePages }
func (s *Session) DownloadInvoicesRequested() bool { return s.downloadInvoicesRequested }
func (s *Session) InvoicesQueued() int             { return s.invoicesQueued }
func (s *Session) InvoicesDownloaded() int         { return s.invoicesDownloaded }
func (s *Session) InvoiceErrors() int              { return s.invoiceErrors }
func (s *Session) InvoiceDownloadsStarted() bool   { return s.invoiceDownloadsStarted }
func (s *Session) LastInvoiceError() string        { return s.lastInvoiceError }
func (s *Session) LastInvoiceOrderID() string      { return s.lastInvoiceOrderID }
func (s *Session) LastInvoiceOrderURL() string     { return s.lastInvoiceOrderURL }
func (s *Session) Message() string                 { return s.message }
func (s *Session) ErrorMessage() string            { return s.errorMessage }
func (s *Session) StartedAt() time.Time            { return s.timeline.StartedAt() }
func (s *Session) CompletedAt() time.Time          { return s.timeline.CompletedAt() }
func (s *Session) UpdatedAt() time.Time            { return s.timeline.LastUpdate() }
func (s *Session) NotifiedAt() time.Time           { return s.timeline.NotifiedAt() }

// InvoiceFailures returns a copy of the current failure map.
func (s *Session) InvoiceFailures() map[string]InvoiceFailure {
	out := make(map[string]InvoiceFailure, len(s.invoiceFailures))
	for k, v := range s.invoiceFailures {
		out[k] = v
	}
	return out
}

// FailedInvoiceOrderIDs returns the order IDs with an outstanding invoice
// failure, sorted for deterministic retry ordering.
func (s *Session) FailedInvoiceOrderIDs() []string {
	ids := make([]string, 0, len(s.invoiceFailures))
	for id := range s.invoiceFailures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LimitReached reports whether the run has collected up to its order limit.
func (s *Session) LimitReached() bool { return s.ordersCollected >= s.ordersLimit }

// BeginRun transitions into a fresh running collection: all counters, orders,
// and failure bookkeeping are reset, the run identity and request parameters
// are recorded, and the start time is stamped.
func (s *Session) BeginRun(runID, host string, filter TimeFilter, downloadInvoices bool, message string) error {
	if err := s.phase.ValidateTransition(PhaseRunning); err != nil {
		return err
	}
	tp := s.timeline.timeProvider
	s.phase = PhaseRunning
	s.runID = runID
	s.host = host
	s.filter = filter
	s.orders = orders.NewSet()
	s.ordersCollected = 0
	s.ordersInRange = 0
	s.pagesScraped = 0
	s.hasMorePages = false
	s.downloadInvoicesRequested = downloadInvoices
	s.invoicesQueued = 0
	s.invoicesDownloaded = 0
	s.invoiceErrors = 0
	s.invoiceDownloadsStarted = false
	s.lastInvoiceError = ""
	s.lastInvoiceOrderID = ""
	s.lastInvoiceOrderURL = ""
	s.invoiceFailures = make(map[string]InvoiceFailure)
	s.message = message
	s.errorMessage = ""
	s.timeline = NewTimeline(tp)
	s.timeline.MarkStarted()
	return nil
}

// ReuseExistingOrders rebases the session onto its current order set and
// jumps straight to completed; used for continuation runs such as "now fetch
// invoices for what I already collected".
func (s *Session) ReuseExistingOrders(runID, host string, filter TimeFilter, downloadInvoices bool, message string) error {
	if err := s.phase.ValidateTransition(PhaseCompleted); err != nil {
		return err
	}
	s.phase = PhaseCompleted
	s.runID = runID
	if host != "" {
		s.host = host
	}
	s.filter = filter
	s.ordersCollected = clamp(s.orders.Len(), 0, s.ordersLimit)
	s.hasMorePages = false
	s.downloadInvoicesRequested = downloadInvoices
	s.invoicesDownloaded = 0
	s.invoiceErrors = 0
	s.invoiceDownloadsStarted = false
	s.lastInvoiceError = ""
	s.invoiceFailures = make(map[string]InvoiceFailure)
	s.message = message
	s.errorMessage = ""
	s.timeline.MarkStarted()
	s.timeline.MarkCompleted()
	return nil
}

// MergeOrders folds a progress batch into the order set. Records already
// present are overwritten in place; new ones append.
func (s *Session) MergeOrders(batch []orders.Order) {
	s.orders.Merge(batch)
	s.Touch()
}

// SetCollectedCount sets ordersCollected, clamped to [0, ordersLimit].
func (s *Session) SetCollectedCount(n int) {
	s.ordersCollected = clamp(n, 0, s.ordersLimit)
	s.Touch()
}

// SetCollectedFromOrders derives ordersCollected from the merged set size.
func (s *Session) SetCollectedFromOrders() {
	s.SetCollectedCount(s.orders.Len())
}

// SetOrdersInRange records the collector's total for the selected range.
func (s *Session) SetOrdersInRange(n int) {
	if n < 0 {
		n = 0
	}
	s.ordersInRange = n
	s.Touch()
}

// SetPagesScraped records how many pages the collector has processed.
func (s *Session) SetPagesScraped(n int) {
	if n < 0 {
		n = 0
	}
	s.pagesScraped = n
	s.Touch()
}

// SetHasMorePages records the collector's more-pages signal.
func (s *Session) SetHasMorePages(v bool) {
	s.hasMorePages = v
	s.Touch()
}

// ObserveInvoicesQueued applies a reported queued count. It is honored only
// while invoice downloads were requested, floored at zero, and never moves
// backward from a stale report.
func (s *Session) ObserveInvoicesQueued(n int) {
	if !s.downloadInvoicesRequested {
		return
	}
	s.invoicesQueued = monotonic(s.invoicesQueued, n)
	s.Touch()
}

// ObserveInvoicesDownloaded applies a reported downloaded count with the same
// floor and never-backward rules.
func (s *Session) ObserveInvoicesDownloaded(n int) {
	s.invoicesDownloaded = monotonic(s.invoicesDownloaded, n)
	s.Touch()
}

// ObserveInvoiceErrors applies a reported error count with the same floor and
// never-backward rules.
func (s *Session) ObserveInvoiceErrors(n int) {
	s.invoiceErrors = monotonic(s.invoiceErrors, n)
	s.Touch()
}

// SetInvoicesQueued sets the queued count directly; the coordinator uses this
// when it builds the task queue.
func (s *Session) SetInvoicesQueued(n int) {
	if n < 0 {
		n = 0
	}
	s.invoicesQueued = n
	s.Touch()
}

// SetInvoiceDownloadsStarted flips the active-download marker.
func (s *Session) SetInvoiceDownloadsStarted(v bool) {
	s.invoiceDownloadsStarted = v
	s.Touch()
}

// RecordInvoiceSuccess applies one successful invoice download: the counter
// increments, any outstanding failure for the order clears, and the
// last-successful pointers update.
func (s *Session) RecordInvoiceSuccess(orderID, orderURL, message string) {
	s.invoicesDownloaded++
	delete(s.invoiceFailures, orderID)
	s.lastInvoiceError = ""
	s.lastInvoiceOrderID = orderID
	s.lastInvoiceOrderURL = orderURL
	if message != "" {
		s.message = message
	}
	s.Touch()
}

// RecordInvoiceFailure applies one failed invoice download: the counter
// increments and the failure entry for the order is inserted or replaced.
func (s *Session) RecordInvoiceFailure(f InvoiceFailure, message string) {
	s.invoiceErrors++
	s.invoiceFailures[f.OrderID] = f
	s.lastInvoiceError = f.Message
	s.lastInvoiceOrderID = f.OrderID
	s.lastInvoiceOrderURL = f.OrderDetailsURL
	if message != "" {
		s.message = message
	}
	s.Touch()
}

// IncrementInvoiceErrors bumps the error counter without a per-order failure
// entry; used for batch-level preconditions such as a missing save target.
func (s *Session) IncrementInvoiceErrors() {
	s.invoiceErrors++
	s.Touch()
}

// SetDownloadInvoicesRequested flips the download-requested flag; retry uses
// this so a continuation run re-arms the coordinator.
func (s *Session) SetDownloadInvoicesRequested(v bool) {
	s.downloadInvoicesRequested = v
	s.Touch()
}

// MarkCompleted transitions the run to completed, stamping the completion
// time and clearing any error detail.
func (s *Session) MarkCompleted(message string) error {
	if err := s.phase.ValidateTransition(PhaseCompleted); err != nil {
		return err
	}
	s.phase = PhaseCompleted
	s.hasMorePages = false
	if message != "" {
		s.message = message
	}
	s.errorMessage = ""
	if !s.timeline.IsCompleted() {
		s.timeline.MarkCompleted()
	} else {
		s.Touch()
	}
	return nil
}

// Fail transitions the run to the error phase with the given detail.
func (s *Session) Fail(errorMessage, message string) error {
	if err := s.phase.ValidateTransition(PhaseError); err != nil {
		return err
	}
	s.phase = PhaseError
	s.errorMessage = errorMessage
	if message != "" {
		s.message = message
	}
	s.Touch()
	return nil
}

// SetMessage updates the human-readable status line.
func (s *Session) SetMessage(m string) {
	s.message = m
	s.Touch()
}

// MarkNotified stamps that the completion notification was sent.
func (s *Session) MarkNotified() { s.timeline.MarkNotified() }

// IsNotified reports whether the completion notification has been sent.
func (s *Session) IsNotified() bool { return s.timeline.IsNotified() }

// Touch refreshes the last-update timestamp.
func (s *Session) Touch() { s.timeline.UpdateLastUpdate() }

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// monotonic floors the incoming value at zero and never lets a stale report
// move the counter backward.
func monotonic(current, incoming int) int {
	if incoming < 0 {
		incoming = 0
	}
	if incoming < current {
		return current
	}
	return incoming
}

// sessionJSON mirrors Session for snapshot serialization.
type sessionJSON struct {
	Phase  Phase      `json:"phase"`
	RunID  string     `json:"run_id,omitempty"`
	Host   string     `json:"host,omitempty"`
	Filter TimeFilter `json:"filter"`

	Orders          *orders.Set `json:"orders"`
	OrdersCollected int         `json:"orders_collected"`
	OrdersLimit     int         `json:"orders_limit"`
	OrdersInRange   int         `json:"orders_in_range"`
	PagesScraped    int         `json:"pages_scraped"`
	HasMorePages    bool        `json:"has_more_pages"`

	DownloadInvoicesRequested bool                      `json:"download_invoices_requested"`
	InvoicesQueued            int                       `json:"invoices_queued"`
	InvoicesDownloaded        int                       `json:"invoices_downloaded"`
	InvoiceErrors             int                       `json:"invoice_errors"`
	InvoiceDownloadsStarted   bool                      `json:"invoice_downloads_started"`
	LastInvoiceError          string                    `json:"last_invoice_error,omitempty"`
	LastInvoiceOrderID        string                    `json:"last_invoice_order_id,omitempty"`
	LastInvoiceOrderURL       string                    `json:"last_invoice_order_url,omitempty"`
	InvoiceFailures           map[string]InvoiceFailure `json:"invoice_failures,omitempty"`

	Message      string `json:"message,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	NotifiedAt  time.Time `json:"notified_at"`
}

// MarshalJSON serializes the session for snapshot persistence.
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionJSON{
		Phase:                     s.phase,
		RunID:                     s.runID,
		Host:                      s.host,
		Filter:                    s.filter,
		Orders:                    s.orders,
		OrdersCollected:           s.ordersCollected,
		OrdersLimit:               s.ordersLimit,
		OrdersInRange:             s.ordersInRange,
		PagesScraped:              s.pagesScraped,
		HasMorePages:              s.hasMorePages,
		DownloadInvoicesRequested: s.downloadInvoicesRequested,
		InvoicesQueued:            s.invoicesQueued,
		InvoicesDownloaded:        s.invoicesDownloaded,
		InvoiceErrors:             s.invoiceErrors,
		InvoiceDownloadsStarted:   s.invoiceDownloadsStarted,
		LastInvoiceError:          s.lastInvoiceError,
		LastInvoiceOrderID:        s.lastInvoiceOrderID,
		LastInvoiceOrderURL:       s.lastInvoiceOrderURL,
		InvoiceFailures:           s.invoiceFailures,
		Message:                   s.message,
		ErrorMessage:              s.errorMessage,
		StartedAt:                 s.timeline.StartedAt(),
		CompletedAt:               s.timeline.CompletedAt(),
		UpdatedAt:                 s.timeline.LastUpdate(),
		NotifiedAt:                s.timeline.NotifiedAt(),
	})
}

// UnmarshalJSON restores a session from its snapshot form.
func (s *Session) UnmarshalJSON(data []byte) error {
	var aux sessionJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	phase := aux.Phase
	if phase == "" {
		phase = PhaseIdle
	}
	restored := ReconstructSession(
		phase,
		aux.RunID, aux.Host,
		aux.Filter,
		aux.Orders,
		aux.OrdersCollected, aux.OrdersLimit, aux.OrdersInRange, aux.PagesScraped,
		aux.HasMorePages, aux.DownloadInvoicesRequested,
		aux.InvoicesQueued, aux.InvoicesDownloaded, aux.InvoiceErrors,
		aux.InvoiceDownloadsStarted,
		aux.LastInvoiceError, aux.LastInvoiceOrderID, aux.LastInvoiceOrderURL,
		aux.InvoiceFailures,
		aux.Message, aux.ErrorMessage,
		ReconstructTimeline(aux.StartedAt, aux.CompletedAt, aux.UpdatedAt, aux.NotifiedAt),
	)
	*s = *restored
	return nil
}
