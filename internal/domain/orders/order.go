// Package orders defines the order-history records collected from a retail
// site and the insertion-ordered collection used to merge paginated,
// possibly-duplicate batches of them.
package orders

// Action is a post-purchase action offered for a shipment, such as tracking
// a package or starting a return.
type Action struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Item is a single purchased item within a shipment.
type Item struct {
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	SKU      string `json:"sku,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Shipment groups the items of an order that ship together, along with their
// delivery status and the actions available for them.
type Shipment struct {
	StatusPrimary   string   `json:"status_primary,omitempty"`
	StatusSecondary string   `json:"status_secondary,omitempty"`
	Actions         []Action `json:"actions,omitempty"`
	Items           []Item   `json:"items,omitempty"`
}

// Total is an order's monetary total. Raw preserves the text exactly as it
// appeared on the page; Amount and CurrencySymbol are best-effort parses and
// may be absent.
type Total struct {
	Raw            string   `json:"raw,omitempty"`
	Amount         *float64 `json:"amount,omitempty"`
	CurrencySymbol string   `json:"currency_symbol,omitempty"`
}

// Order is one collected order-history record. OrderID is the unique key;
// everything else is display data reported by the collector.
type Order struct {
	OrderID         string     `json:"order_id"`
	OrderDateText   string     `json:"order_date_text,omitempty"`
	OrderDateISO    string     `json:"order_date_iso,omitempty"`
	BuyerName       string     `json:"buyer_name,omitempty"`
	Total           Total      `json:"total"`
	ItemCount       int        `json:"item_count"`
	InvoiceURL      string     `json:"invoice_url,omitempty"`
	OrderDetailsURL string     `json:"order_details_url,omitempty"`
	Status          string     `json:"status,omitempty"`
	Shipments       []Shipment `json:"shipments,omitempty"`
}

// HasInvoice reports whether the record carries an invoice link to download.
func (o Order) HasInvoice() bool { return o.InvoiceURL != "" }
