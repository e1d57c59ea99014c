package session

import (
	"net/url"
	"strings"
)

// ResolveURL resolves a possibly-relative href against the session's host
// base URL. Absolute hrefs pass through untouched; unparseable input returns
// the href as-is so callers can still surface it to the user.
func ResolveURL(base, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// OrderDetailsFallback builds the canonical order-details URL for an order
// that carries no details link of its own.
func OrderDetailsFallback(base, orderID string) string {
	return ResolveURL(base, "/your-orders/order-details?orderID="+url.QueryEscape(orderID))
}
