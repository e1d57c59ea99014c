package session

// InvoiceFailure records the current outstanding failure for one order's
// invoice download. At most one failure exists per order; a later success
// removes it and a later failure replaces the message.
type InvoiceFailure struct {
	OrderID         string `json:"order_id"`
	OrderDetailsURL string `json:"order_details_url,omitempty"`
	Message         string `json:"message"`
}
