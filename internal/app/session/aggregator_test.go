package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/orderharvest/internal/domain/orders"
	domain "github.com/ahrav/orderharvest/internal/domain/session"
)

func intp(n int) *int    { return &n }
func boolp(b bool) *bool { return &b }

func runningSession(t *testing.T, limit int) *domain.Session {
	t.Helper()
	s := domain.NewSession(limit)
	require.NoError(t, s.BeginRun("ohv-20260901-120000", "https://shop.example.com", domain.TimeFilter{Value: "months-3", Label: "past 3 months"}, false, ""))
	return s
}

func TestAggregateMergeIdempotent(t *testing.T) {
	batch := []orders.Order{{OrderID: "A"}, {OrderID: "B"}}

	s := runningSession(t, 1000)
	aggregate(s, domain.ProgressUpdate{Orders: batch})
	once := s.Orders().Items()

	aggregate(s, domain.ProgressUpdate{Orders: batch})
	twice := s.Orders().Items()

	assert.Equal(t, once, twice)
	assert.Equal(t, 2, s.OrdersCollected())
}

func TestAggregateClampInvariant(t *testing.T) {
	s := runningSession(t, 10)

	updates := []domain.ProgressUpdate{
		{OrdersCollected: intp(4)},
		{OrdersCollected: intp(25)},
		{OrdersCollected: intp(-3)},
		{Orders: []orders.Order{{OrderID: "A"}, {OrderID: "B"}}},
	}
	for _, p := range updates {
		aggregate(s, p)
		assert.GreaterOrEqual(t, s.OrdersCollected(), 0)
		assert.LessOrEqual(t, s.OrdersCollected(), s.OrdersLimit())
	}
}

func TestAggregateLimitReachedForcesCompleted(t *testing.T) {
	s := runningSession(t, 5)

	res := aggregate(s, domain.ProgressUpdate{OrdersCollected: intp(5), HasMorePages: boolp(true)})

	assert.Equal(t, domain.PhaseCompleted, s.Phase())
	assert.True(t, res.Completed)
	assert.True(t, res.LeftRunning)
	assert.False(t, res.ShouldContinue)
	assert.Contains(t, s.Message(), "limit reached")
}

func TestAggregateExplicitCompletedWins(t *testing.T) {
	s := runningSession(t, 1000)

	res := aggregate(s, domain.ProgressUpdate{
		Orders:    []orders.Order{{OrderID: "A"}, {OrderID: "B"}, {OrderID: "C"}},
		Completed: true,
	})

	assert.Equal(t, domain.PhaseCompleted, s.Phase())
	assert.Equal(t, 3, s.OrdersCollected())
	assert.Equal(t, "Export completed", s.Message())
	assert.Empty(t, s.ErrorMessage())
	assert.True(t, res.LeftRunning)
}

func TestAggregateExplicitErrorWins(t *testing.T) {
	s := runningSession(t, 1000)

	aggregate(s, domain.ProgressUpdate{ErrorMessage: "order page structure changed"})

	assert.Equal(t, domain.PhaseError, s.Phase())
	assert.Equal(t, "order page structure changed", s.ErrorMessage())
}

func TestAggregateErrorWithoutDetail(t *testing.T) {
	s := runningSession(t, 1000)

	aggregate(s, domain.ProgressUpdate{Failed: true})

	assert.Equal(t, domain.PhaseError, s.Phase())
	assert.Equal(t, "Unknown export error", s.ErrorMessage())
}

func TestAggregateShouldContinueScenario(t *testing.T) {
	s := runningSession(t, 1000)

	res := aggregate(s, domain.ProgressUpdate{
		Orders:          []orders.Order{{OrderID: "A"}, {OrderID: "B"}},
		OrdersCollected: intp(2),
		HasMorePages:    boolp(true),
	})
	assert.True(t, res.ShouldContinue)
	assert.Equal(t, domain.PhaseRunning, s.Phase())

	res = aggregate(s, domain.ProgressUpdate{
		Orders:    []orders.Order{{OrderID: "A"}, {OrderID: "B"}, {OrderID: "C"}},
		Completed: true,
	})
	assert.Equal(t, domain.PhaseCompleted, s.Phase())
	assert.Equal(t, 3, s.Orders().Len())
	assert.False(t, res.ShouldContinue)
}

func TestAggregateShouldContinueRespectsInRangeTotal(t *testing.T) {
	s := runningSession(t, 1000)

	res := aggregate(s, domain.ProgressUpdate{
		OrdersCollected: intp(40),
		OrdersInRange:   intp(40),
		HasMorePages:    boolp(true),
	})
	// Everything in range is already collected; no point advancing.
	assert.False(t, res.ShouldContinue)
	assert.Equal(t, domain.PhaseRunning, s.Phase())
}

func TestAggregateStaleInvoiceCountsIgnored(t *testing.T) {
	s := domain.NewSession(1000)
	require.NoError(t, s.BeginRun("r1", "", domain.TimeFilter{}, true, ""))

	aggregate(s, domain.ProgressUpdate{InvoicesDownloaded: intp(4), InvoicesQueued: intp(6)})
	aggregate(s, domain.ProgressUpdate{InvoicesDownloaded: intp(2)})

	assert.Equal(t, 4, s.InvoicesDownloaded())
	assert.Equal(t, 6, s.InvoicesQueued())
}

func TestAggregateDuplicateTerminalReport(t *testing.T) {
	s := runningSession(t, 1000)
	final := domain.ProgressUpdate{
		Orders:    []orders.Order{{OrderID: "A"}},
		Completed: true,
	}

	first := aggregate(s, final)
	second := aggregate(s, final)

	assert.True(t, first.LeftRunning)
	assert.False(t, second.LeftRunning)
	assert.Equal(t, domain.PhaseCompleted, s.Phase())
	assert.Equal(t, 1, s.Orders().Len())
}
