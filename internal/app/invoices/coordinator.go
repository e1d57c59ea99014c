package invoices

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	domain "github.com/ahrav/orderharvest/internal/domain/session"
	"github.com/ahrav/orderharvest/pkg/common/logger"
)

// maxWorkers bounds the download pool; the effective pool is
// min(maxWorkers, queue length).
const maxWorkers = 2

// Resolver turns an order's invoice link into the URL of the actual
// downloadable document, possibly by fetching an intermediate page.
type Resolver interface {
	Resolve(ctx context.Context, invoiceURL string) (string, error)
}

// Saver persists a resolved document. Ready is the batch-level precondition
// (the save target is reachable and writable); Save stores the document under
// dir/name, uniquifying on collision, and returns the final path.
type Saver interface {
	Ready(ctx context.Context) error
	Save(ctx context.Context, docURL, dir, name string) (string, error)
}

// SessionState is the coordinator's hand-off into the single-writer session
// owner. Every counter update flows through Update so workers never
// interleave mid-mutation.
type SessionState interface {
	Update(ctx context.Context, mutate func(*domain.Session)) error
	View(ctx context.Context, view func(*domain.Session)) error
}

// Coordinator drains invoice download work for the active session with a
// bounded worker pool and cooperative cancellation.
type Coordinator struct {
	state    SessionState
	resolver Resolver
	saver    Saver

	running   atomic.Bool
	cancelled atomic.Bool

	log    *logger.Logger
	tracer trace.Tracer
}

// NewCoordinator creates a download coordinator.
func NewCoordinator(state SessionState, resolver Resolver, saver Saver, log *logger.Logger, tracer trace.Tracer) *Coordinator {
	return &Coordinator{
		state:    state,
		resolver: resolver,
		saver:    saver,
		log:      log,
		tracer:   tracer,
	}
}

// Active reports whether a download run is currently executing.
func (c *Coordinator) Active() bool { return c.running.Load() }

// Cancel requests cooperative cancellation: workers finish their in-flight
// task and stop before claiming the next one.
func (c *Coordinator) Cancel() { c.cancelled.Store(true) }

// Begin runs one download batch to completion. A second concurrent call is a
// no-op. When only is non-empty the batch is restricted to those order IDs.
// Per-task failures never abort the batch; they land in the session's failure
// map. The batch-level save precondition is checked once up front and fails
// the whole run with a single error increment.
func (c *Coordinator) Begin(ctx context.Context, only []string) error {
	if !c.running.CompareAndSwap(false, true) {
		return nil
	}
	defer c.running.Store(false)
	c.cancelled.Store(false)

	ctx, span := c.tracer.Start(ctx, "invoices.download_batch")
	defer span.End()

	if err := c.saver.Ready(ctx); err != nil {
		c.log.Error(ctx, "invoice save target unavailable", "error", err)
		_ = c.state.Update(ctx, func(s *domain.Session) {
			s.IncrementInvoiceErrors()
			s.SetMessage("Enable the downloads permission to save invoices.")
		})
		return fmt.Errorf("invoice save target unavailable: %w", err)
	}

	var (
		runID string
		items []Task
	)
	_ = c.state.View(ctx, func(s *domain.Session) {
		runID = s.RunID()
		items = buildQueue(s.Orders().Items(), s.Host(), only)
	})

	if len(items) == 0 {
		_ = c.state.Update(ctx, func(s *domain.Session) {
			s.SetMessage("No invoices to download.")
		})
		return nil
	}

	total := len(items)
	_ = c.state.Update(ctx, func(s *domain.Session) {
		s.SetInvoicesQueued(total)
		s.SetInvoiceDownloadsStarted(true)
		s.SetMessage(fmt.Sprintf("Downloading %d invoice(s)...", total))
	})
	c.log.Info(ctx, "invoice downloads starting", "run_id", runID, "queued", total)

	var (
		cursor atomic.Int64
		done   atomic.Int64
	)
	workers := maxWorkers
	if total < workers {
		workers = total
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				if c.cancelled.Load() || gctx.Err() != nil {
					return nil
				}
				idx := int(cursor.Add(1)) - 1
				if idx >= total {
					return nil
				}
				c.process(gctx, runID, items[idx], &done, total)
			}
		})
	}
	_ = g.Wait()

	cancelled := c.cancelled.Load()
	saved := int(done.Load())
	_ = c.state.Update(ctx, func(s *domain.Session) {
		s.SetInvoiceDownloadsStarted(false)
		if cancelled {
			s.SetMessage("Invoice downloads cancelled.")
		} else {
			s.SetMessage(fmt.Sprintf("Invoice downloads complete: %d of %d saved.", saved, total))
		}
	})
	c.log.Info(ctx, "invoice downloads finished",
		"run_id", runID, "saved", saved, "queued", total, "cancelled", cancelled)
	return nil
}

// process handles one task: resolve the document URL, save it under the run's
// directory, and record the outcome on the session.
func (c *Coordinator) process(ctx context.Context, runID string, t Task, done *atomic.Int64, total int) {
	ctx, span := c.tracer.Start(ctx, "invoices.download_one")
	defer span.End()

	docURL, err := c.resolver.Resolve(ctx, t.InvoiceURL)
	if err != nil {
		c.fail(ctx, t, err)
		return
	}

	name := fmt.Sprintf("%s-invoice.%s", t.OrderID, fileExt(docURL))
	path, err := c.saver.Save(ctx, docURL, runID, name)
	if err != nil {
		c.fail(ctx, t, err)
		return
	}

	n := done.Add(1)
	c.log.Debug(ctx, "invoice saved", "order_id", t.OrderID, "path", path)
	_ = c.state.Update(ctx, func(s *domain.Session) {
		s.RecordInvoiceSuccess(t.OrderID, t.OrderDetailsURL,
			fmt.Sprintf("Downloaded invoice %d/%d", n, total))
	})
}

func (c *Coordinator) fail(ctx context.Context, t Task, err error) {
	c.log.Warn(ctx, "invoice download failed", "order_id", t.OrderID, "error", err)
	msg := fmt.Sprintf("Failed to download invoice for order %s", t.OrderID)
	if strings.Contains(err.Error(), "user gesture") {
		msg = "Allow multiple automatic downloads for this site, then retry the failed invoices."
	}
	_ = c.state.Update(ctx, func(s *domain.Session) {
		s.RecordInvoiceFailure(domain.InvoiceFailure{
			OrderID:         t.OrderID,
			OrderDetailsURL: t.OrderDetailsURL,
			Message:         err.Error(),
		}, msg)
	})
}
