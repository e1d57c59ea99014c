package invoices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/orderharvest/internal/domain/orders"
	domain "github.com/ahrav/orderharvest/internal/domain/session"
	"github.com/ahrav/orderharvest/pkg/common/logger"
)

// fakeState owns a session behind a mutex, standing in for the session
// service's single-writer apply path.
type fakeState struct {
	mu   sync.Mutex
	sess *domain.Session
}

func newFakeState(t *testing.T, items []orders.Order) *fakeState {
	t.Helper()
	s := domain.NewSession(1000)
	require.NoError(t, s.BeginRun("ohv-20260901-120000", "https://shop.example.com", domain.TimeFilter{}, true, ""))
	s.MergeOrders(items)
	require.NoError(t, s.MarkCompleted(""))
	return &fakeState{sess: s}
}

func (f *fakeState) Update(ctx context.Context, mutate func(*domain.Session)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(f.sess)
	return nil
}

func (f *fakeState) View(ctx context.Context, view func(*domain.Session)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	view(f.sess)
	return nil
}

func (f *fakeState) snapshot(t *testing.T) *domain.Session {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.sess.MarshalJSON()
	require.NoError(t, err)
	var out domain.Session
	require.NoError(t, out.UnmarshalJSON(data))
	return &out
}

type fakeResolver struct {
	mu       sync.Mutex
	failFor  map[string]error
	resolved []string
	onClaim  func(url string)
}

func (f *fakeResolver) Resolve(ctx context.Context, invoiceURL string) (string, error) {
	f.mu.Lock()
	f.resolved = append(f.resolved, invoiceURL)
	f.mu.Unlock()
	if f.onClaim != nil {
		f.onClaim(invoiceURL)
	}
	if err, ok := f.failFor[invoiceURL]; ok {
		return "", err
	}
	return invoiceURL + ".pdf", nil
}

func (f *fakeResolver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resolved)
}

type fakeSaver struct {
	mu       sync.Mutex
	readyErr error
	saved    []string
}

func (f *fakeSaver) Ready(ctx context.Context) error { return f.readyErr }

func (f *fakeSaver) Save(ctx context.Context, docURL, dir, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := dir + "/" + name
	f.saved = append(f.saved, path)
	return path, nil
}

func newTestCoordinator(state SessionState, r Resolver, s Saver) *Coordinator {
	return NewCoordinator(state, r, s,
		logger.New(io.Discard, logger.LevelDebug, "test", nil),
		noop.NewTracerProvider().Tracer("test"))
}

func invOrder(id string) orders.Order {
	return orders.Order{OrderID: id, InvoiceURL: "https://shop.example.com/inv/" + id}
}

func TestBeginDownloadsAllInvoices(t *testing.T) {
	state := newFakeState(t, []orders.Order{invOrder("A"), invOrder("B"), {OrderID: "C"}})
	saver := &fakeSaver{}
	c := newTestCoordinator(state, &fakeResolver{}, saver)

	require.NoError(t, c.Begin(context.Background(), nil))

	snap := state.snapshot(t)
	assert.Equal(t, 2, snap.InvoicesQueued())
	assert.Equal(t, 2, snap.InvoicesDownloaded())
	assert.Zero(t, snap.InvoiceErrors())
	assert.False(t, snap.InvoiceDownloadsStarted())
	assert.Equal(t, "Invoice downloads complete: 2 of 2 saved.", snap.Message())
	assert.Len(t, saver.saved, 2)
	assert.Contains(t, saver.saved, "ohv-20260901-120000/A-invoice.pdf")
}

func TestQueueDeduplicatesByOrderAndURL(t *testing.T) {
	// The same (orderID, invoiceURL) pair twice simulates a double-merge.
	items := []orders.Order{invOrder("A"), invOrder("A"), invOrder("B")}
	tasks := buildQueue(items, "https://shop.example.com", nil)

	require.Len(t, tasks, 2)
	assert.Equal(t, "A", tasks[0].OrderID)
	assert.Equal(t, "B", tasks[1].OrderID)
}

func TestQueueRestrictedToRetrySubset(t *testing.T) {
	items := []orders.Order{invOrder("A"), invOrder("B"), invOrder("C")}
	tasks := buildQueue(items, "https://shop.example.com", []string{"B"})

	require.Len(t, tasks, 1)
	assert.Equal(t, "B", tasks[0].OrderID)
}

func TestQueueResolvesDetailsURL(t *testing.T) {
	items := []orders.Order{
		{OrderID: "A", InvoiceURL: "/inv/A", OrderDetailsURL: "/orders/A"},
		{OrderID: "B", InvoiceURL: "/inv/B"},
	}
	tasks := buildQueue(items, "https://shop.example.com", nil)

	require.Len(t, tasks, 2)
	assert.Equal(t, "https://shop.example.com/inv/A", tasks[0].InvoiceURL)
	assert.Equal(t, "https://shop.example.com/orders/A", tasks[0].OrderDetailsURL)
	assert.Equal(t, "https://shop.example.com/your-orders/order-details?orderID=B", tasks[1].OrderDetailsURL)
}

func TestFailureLifecycle(t *testing.T) {
	state := newFakeState(t, []orders.Order{invOrder("A"), invOrder("B")})
	resolver := &fakeResolver{failFor: map[string]error{
		"https://shop.example.com/inv/B": errors.New("fetch failed: 503"),
	}}
	c := newTestCoordinator(state, resolver, &fakeSaver{})

	require.NoError(t, c.Begin(context.Background(), nil))

	snap := state.snapshot(t)
	assert.Equal(t, 1, snap.InvoicesDownloaded())
	assert.Equal(t, 1, snap.InvoiceErrors())
	failures := snap.InvoiceFailures()
	require.Len(t, failures, 1)
	assert.Equal(t, "fetch failed: 503", failures["B"].Message)
	assert.NotEmpty(t, failures["B"].OrderDetailsURL)

	// A successful retry of the same order clears its failure entry.
	resolver.failFor = nil
	require.NoError(t, c.Begin(context.Background(), []string{"B"}))

	snap = state.snapshot(t)
	assert.Empty(t, snap.InvoiceFailures())
	assert.Equal(t, 2, snap.InvoicesDownloaded())
	assert.Equal(t, 1, snap.InvoiceErrors())
}

func TestUserGestureFailureHint(t *testing.T) {
	state := newFakeState(t, []orders.Order{invOrder("A")})
	resolver := &fakeResolver{failFor: map[string]error{
		"https://shop.example.com/inv/A": errors.New("download rejected: requires a user gesture"),
	}}
	c := newTestCoordinator(state, resolver, &fakeSaver{})

	require.NoError(t, c.Begin(context.Background(), nil))

	snap := state.snapshot(t)
	assert.Contains(t, snap.Message(), "Allow multiple automatic downloads")
}

func TestReadyPreconditionFailsBatchOnce(t *testing.T) {
	state := newFakeState(t, []orders.Order{invOrder("A"), invOrder("B")})
	resolver := &fakeResolver{}
	c := newTestCoordinator(state, resolver, &fakeSaver{readyErr: errors.New("target dir not writable")})

	err := c.Begin(context.Background(), nil)
	require.Error(t, err)

	snap := state.snapshot(t)
	assert.Equal(t, 1, snap.InvoiceErrors())
	assert.Zero(t, snap.InvoicesQueued())
	assert.Zero(t, resolver.count())
	assert.False(t, snap.InvoiceDownloadsStarted())
}

func TestEmptyQueue(t *testing.T) {
	state := newFakeState(t, []orders.Order{{OrderID: "A"}})
	c := newTestCoordinator(state, &fakeResolver{}, &fakeSaver{})

	require.NoError(t, c.Begin(context.Background(), nil))

	snap := state.snapshot(t)
	assert.Equal(t, "No invoices to download.", snap.Message())
	assert.False(t, snap.InvoiceDownloadsStarted())
}

func TestSecondConcurrentBeginIsNoop(t *testing.T) {
	state := newFakeState(t, []orders.Order{invOrder("A")})
	release := make(chan struct{})
	claimed := make(chan struct{}, 8)
	resolver := &fakeResolver{onClaim: func(string) {
		claimed <- struct{}{}
		<-release
	}}
	c := newTestCoordinator(state, resolver, &fakeSaver{})

	done := make(chan struct{})
	go func() {
		_ = c.Begin(context.Background(), nil)
		close(done)
	}()
	<-claimed
	assert.True(t, c.Active())

	// Overlapping call returns immediately without touching the queue.
	require.NoError(t, c.Begin(context.Background(), nil))
	assert.Equal(t, 1, resolver.count())

	close(release)
	<-done
	assert.False(t, c.Active())
}

func TestCooperativeCancellation(t *testing.T) {
	items := make([]orders.Order, 6)
	for i := range items {
		items[i] = invOrder(fmt.Sprintf("O%d", i))
	}
	state := newFakeState(t, items)

	release := make(chan struct{})
	claimed := make(chan struct{}, len(items))
	resolver := &fakeResolver{onClaim: func(string) {
		claimed <- struct{}{}
		<-release
	}}
	c := newTestCoordinator(state, resolver, &fakeSaver{})

	done := make(chan struct{})
	go func() {
		_ = c.Begin(context.Background(), nil)
		close(done)
	}()

	// Both workers claim their first task, then cancellation lands before
	// either claims another.
	<-claimed
	<-claimed
	c.Cancel()
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not drain after cancellation")
	}

	// Only the two in-flight tasks ran; nothing beyond them was claimed.
	assert.Equal(t, 2, resolver.count())
	snap := state.snapshot(t)
	assert.False(t, snap.InvoiceDownloadsStarted())
	assert.Equal(t, 2, snap.InvoicesDownloaded())
	assert.Equal(t, "Invoice downloads cancelled.", snap.Message())
}

func TestFileExt(t *testing.T) {
	assert.Equal(t, "pdf", fileExt("https://x/invoice.PDF?sig=1"))
	assert.Equal(t, "html", fileExt("https://x/print.html"))
}
