// Package invoices implements the invoice download coordinator: it turns a
// completed session's orders into a deduplicated task queue and drains it
// with a small fixed worker pool, recording per-order success and failure
// back into the session.
package invoices

import (
	"strings"

	"github.com/ahrav/orderharvest/internal/domain/orders"
	domain "github.com/ahrav/orderharvest/internal/domain/session"
)

// Task is one unit of invoice download work.
type Task struct {
	OrderID         string
	InvoiceURL      string
	OrderDetailsURL string
}

// buildQueue selects the orders that need an invoice fetched. When only is
// non-empty the queue is restricted to those order IDs (the retry case).
// Tasks are deduplicated by (orderID, invoiceURL) so a record seen twice
// through merge overwrites never enqueues twice. Each task carries a resolved
// order-details URL for failure reporting.
func buildQueue(items []orders.Order, host string, only []string) []Task {
	var wanted map[string]struct{}
	if len(only) > 0 {
		wanted = make(map[string]struct{}, len(only))
		for _, id := range only {
			wanted[id] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(items))
	tasks := make([]Task, 0, len(items))
	for _, o := range items {
		if !o.HasInvoice() {
			continue
		}
		if wanted != nil {
			if _, ok := wanted[o.OrderID]; !ok {
				continue
			}
		}
		key := o.OrderID + "\x00" + o.InvoiceURL
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		details := o.OrderDetailsURL
		if details != "" {
			details = domain.ResolveURL(host, details)
		} else {
			details = domain.OrderDetailsFallback(host, o.OrderID)
		}
		tasks = append(tasks, Task{
			OrderID:         o.OrderID,
			InvoiceURL:      domain.ResolveURL(host, o.InvoiceURL),
			OrderDetailsURL: details,
		})
	}
	return tasks
}

// fileExt picks the saved document's extension from the resolved URL.
func fileExt(docURL string) string {
	if strings.Contains(strings.ToLower(docURL), ".pdf") {
		return "pdf"
	}
	return "html"
}
