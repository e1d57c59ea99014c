package session

import "github.com/ahrav/orderharvest/internal/domain/orders"

// ProgressUpdate is one partial progress report from the collector. Every
// field is optional; absent scalars leave the session's current value alone.
// Reports may arrive duplicated or out of order, so consumers must fold them
// idempotently.
type ProgressUpdate struct {
	RunID string `json:"run_id,omitempty"`

	// Orders is the cumulative batch of records collected so far. Batches
	// may re-send earlier pages with updated statuses.
	Orders []orders.Order `json:"orders,omitempty"`

	OrdersCollected *int  `json:"orders_collected,omitempty"`
	OrdersInRange   *int  `json:"orders_in_range,omitempty"`
	PagesScraped    *int  `json:"pages_scraped,omitempty"`
	HasMorePages    *bool `json:"has_more_pages,omitempty"`

	InvoicesQueued     *int `json:"invoices_queued,omitempty"`
	InvoicesDownloaded *int `json:"invoices_downloaded,omitempty"`
	InvoiceErrors      *int `json:"invoice_errors,omitempty"`

	Message      string `json:"message,omitempty"`
	ErrorMessage string `json:"error,omitempty"`

	// Completed marks the final report of a successful run. Failed marks a
	// collection error; ErrorMessage carries the reason when present.
	Completed bool `json:"completed,omitempty"`
	Failed    bool `json:"failed,omitempty"`
}
