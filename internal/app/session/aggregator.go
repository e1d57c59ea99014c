// Package session implements the session state machine service: the
// single-writer owner of the active collection session, the progress
// aggregator that folds collector reports into it, and the operation
// handlers exposed to the transport layer.
package session

import (
	"fmt"

	domain "github.com/ahrav/orderharvest/internal/domain/session"
)

// AggregationResult reports what a progress application did to the session.
type AggregationResult struct {
	// ShouldContinue tells the collector whether to advance to the next
	// page: more pages exist, the run is still live, and the collected
	// count is below the effective target.
	ShouldContinue bool

	// LeftRunning is set when this update moved the session out of the
	// running phase; the caller tears down the collector's helper
	// resources.
	LeftRunning bool

	// Completed is set when this update landed the session in the
	// completed phase.
	Completed bool
}

// aggregate folds one progress report into the session. Reports are partial
// and may be duplicated or reordered; every rule here is safe to apply twice.
//
// Order of application matters: merge the batch first, derive the collected
// count from it, floor the invoice counters, then decide the phase — explicit
// completed/failed signals win, and the limit backstop fires last so a
// collector that never reports "no more pages" still terminates.
func aggregate(s *domain.Session, p domain.ProgressUpdate) AggregationResult {
	wasRunning := s.Phase() == domain.PhaseRunning

	if len(p.Orders) > 0 {
		s.MergeOrders(p.Orders)
	}

	switch {
	case p.Completed && len(p.Orders) > 0:
		// The terminal batch is authoritative for the final count.
		s.SetCollectedFromOrders()
	case p.OrdersCollected != nil:
		s.SetCollectedCount(*p.OrdersCollected)
	case len(p.Orders) > 0:
		s.SetCollectedFromOrders()
	}

	if p.OrdersInRange != nil {
		s.SetOrdersInRange(*p.OrdersInRange)
	}
	if p.PagesScraped != nil {
		s.SetPagesScraped(*p.PagesScraped)
	}
	if p.HasMorePages != nil {
		s.SetHasMorePages(*p.HasMorePages)
	}

	if p.InvoicesQueued != nil {
		s.ObserveInvoicesQueued(*p.InvoicesQueued)
	}
	if p.InvoicesDownloaded != nil {
		s.ObserveInvoicesDownloaded(*p.InvoicesDownloaded)
	}
	if p.InvoiceErrors != nil {
		s.ObserveInvoiceErrors(*p.InvoiceErrors)
	}

	if p.Message != "" {
		s.SetMessage(p.Message)
	}

	switch {
	case p.Failed || p.ErrorMessage != "":
		errMsg := p.ErrorMessage
		if errMsg == "" {
			errMsg = p.Message
		}
		if errMsg == "" {
			errMsg = "Unknown export error"
		}
		msg := p.Message
		if msg == "" {
			msg = "Export failed"
		}
		_ = s.Fail(errMsg, msg)
	case p.Completed:
		msg := p.Message
		if msg == "" {
			msg = "Export completed"
		}
		_ = s.MarkCompleted(msg)
	case s.Phase() == domain.PhaseRunning && s.LimitReached():
		// Backstop: terminate even if the collector keeps promising more
		// pages. A collector mid-page may still deliver one more batch,
		// which merges idempotently and clamps.
		_ = s.MarkCompleted(fmt.Sprintf("Order limit reached (%d). Export completed.", s.OrdersLimit()))
	}

	res := AggregationResult{
		LeftRunning: wasRunning && s.Phase() != domain.PhaseRunning,
		Completed:   s.Phase() == domain.PhaseCompleted,
	}
	res.ShouldContinue = s.HasMorePages() &&
		s.Phase() == domain.PhaseRunning &&
		s.OrdersCollected() < effectiveTarget(s)
	return res
}

// effectiveTarget is the number of orders this run is actually after: the
// in-range total when the collector reported one, capped by the hard limit.
func effectiveTarget(s *domain.Session) int {
	target := s.OrdersLimit()
	if n := s.OrdersInRange(); n > 0 && n < target {
		target = n
	}
	return target
}
