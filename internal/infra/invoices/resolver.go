// Package invoices provides the infrastructure side of invoice downloading:
// resolving an order's invoice link to the actual document URL and saving the
// document to disk.
package invoices

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"

	"github.com/ahrav/orderharvest/pkg/common"
	"github.com/ahrav/orderharvest/pkg/common/logger"
)

// maxFetchRetries bounds how many times an intermediate-page fetch is retried
// before the task is failed.
const maxFetchRetries = 3

// Page fetches against the retail host stay under this rate so a download
// run does not hammer the site.
const (
	fetchRPS   = 5
	fetchBurst = 5
)

// HTTPResolver resolves invoice links by fetching the intermediate invoice
// page and picking the best document link from its anchors.
type HTTPResolver struct {
	client  *http.Client
	limiter *common.RateLimiter
	log     *logger.Logger
	tracer  trace.Tracer
}

// NewHTTPResolver creates a resolver using the given HTTP client.
func NewHTTPResolver(client *http.Client, log *logger.Logger, tracer trace.Tracer) *HTTPResolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPResolver{
		client:  client,
		limiter: common.NewRateLimiter(fetchRPS, fetchBurst),
		log:     log,
		tracer:  tracer,
	}
}

// Resolve returns the URL of the downloadable document behind an invoice
// link. A link that already points at a document passes through. Otherwise
// the intermediate page is fetched (with retries) and its anchors searched by
// priority: an exact invoice PDF href, then a label containing "invoice",
// then a "summary" label, then the first link. When the page yields nothing,
// the original URL is accepted only if it already looks like a document.
func (r *HTTPResolver) Resolve(ctx context.Context, invoiceURL string) (string, error) {
	ctx, span := r.tracer.Start(ctx, "invoices.resolve")
	defer span.End()

	if isDocumentURL(invoiceURL) && strings.Contains(strings.ToLower(invoiceURL), ".pdf") {
		return invoiceURL, nil
	}

	body, finalURL, err := r.fetchPage(ctx, invoiceURL)
	if err != nil {
		return "", fmt.Errorf("fetching invoice page: %w", err)
	}

	if href := selectInvoiceLink(body); href != "" {
		return resolveRef(finalURL, href), nil
	}
	if isDocumentURL(invoiceURL) {
		return invoiceURL, nil
	}
	return "", fmt.Errorf("no invoice document link found on %s", invoiceURL)
}

// fetchPage retrieves the intermediate page with bounded retries and returns
// the body along with the final URL after redirects.
func (r *HTTPResolver) fetchPage(ctx context.Context, pageURL string) (string, string, error) {
	var (
		body     string
		finalURL = pageURL
	)
	op := func() error {
		if err := r.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("invoice page returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("invoice page returned %d", resp.StatusCode))
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		body = string(data)
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return "", "", err
	}
	return body, finalURL, nil
}

type anchor struct {
	href  string
	label string
}

// selectInvoiceLink parses the page and applies the link priority order.
func selectInvoiceLink(body string) string {
	anchors := parseAnchors(body)
	if len(anchors) == 0 {
		return ""
	}
	for _, a := range anchors {
		if strings.Contains(strings.ToLower(a.href), "invoice.pdf") {
			return a.href
		}
	}
	for _, a := range anchors {
		if strings.Contains(strings.ToLower(a.label), "invoice") {
			return a.href
		}
	}
	for _, a := range anchors {
		if strings.Contains(strings.ToLower(a.label), "summary") {
			return a.href
		}
	}
	return anchors[0].href
}

func parseAnchors(body string) []anchor {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}
	var anchors []anchor
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			var href string
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					href = strings.TrimSpace(attr.Val)
					break
				}
			}
			if href != "" && !strings.HasPrefix(href, "#") && !strings.HasPrefix(strings.ToLower(href), "javascript:") {
				anchors = append(anchors, anchor{href: href, label: nodeText(n)})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return anchors
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// isDocumentURL reports whether a URL already points at a saveable document.
func isDocumentURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.Contains(lower, ".pdf") || strings.Contains(lower, "print.html")
}

func resolveRef(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
