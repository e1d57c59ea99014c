package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/orderharvest/internal/domain/orders"
	domain "github.com/ahrav/orderharvest/internal/domain/session"
	"github.com/ahrav/orderharvest/internal/infra/storage"
)

func setupStores(t *testing.T) (context.Context, *SnapshotStore, *SettingsStore, func()) {
	t.Helper()
	pool, cleanup := storage.SetupTestContainer(t)
	return context.Background(),
		NewSnapshotStore(pool, storage.NoOpTracer()),
		NewSettingsStore(pool, storage.NoOpTracer()),
		cleanup
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	ctx, store, _, cleanup := setupStores(t)
	defer cleanup()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	sess := domain.NewSession(500)
	require.NoError(t, sess.BeginRun("ohv-20260901-120000", "https://shop.example.com",
		domain.TimeFilter{Value: "last30", Label: "last 30 days"}, true, "Exporting orders from last 30 days"))
	sess.MergeOrders([]orders.Order{{OrderID: "A", InvoiceURL: "/inv/A"}, {OrderID: "B"}})
	sess.SetCollectedFromOrders()
	require.NoError(t, store.Save(ctx, sess))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, domain.PhaseRunning, loaded.Phase())
	assert.Equal(t, "ohv-20260901-120000", loaded.RunID())
	assert.Equal(t, sess.Orders().Items(), loaded.Orders().Items())
	assert.Equal(t, 2, loaded.OrdersCollected())
	assert.Equal(t, 500, loaded.OrdersLimit())
}

func TestSnapshotStoreOverwrites(t *testing.T) {
	ctx, store, _, cleanup := setupStores(t)
	defer cleanup()

	first := domain.NewSession(100)
	require.NoError(t, first.BeginRun("r1", "", domain.TimeFilter{}, false, ""))
	require.NoError(t, store.Save(ctx, first))

	second := domain.NewSession(100)
	require.NoError(t, second.BeginRun("r2", "", domain.TimeFilter{}, false, ""))
	require.NoError(t, store.Save(ctx, second))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "r2", loaded.RunID())
}

func TestSnapshotStoreClear(t *testing.T) {
	ctx, store, _, cleanup := setupStores(t)
	defer cleanup()

	require.NoError(t, store.Save(ctx, domain.NewSession(0)))
	require.NoError(t, store.Clear(ctx))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSettingsStoreRoundTrip(t *testing.T) {
	ctx, _, store, cleanup := setupStores(t)
	defer cleanup()

	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, st.NotifyOnCompletion)

	require.NoError(t, store.Save(ctx, domain.Settings{NotifyOnCompletion: true}))

	st, err = store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, st.NotifyOnCompletion)
}
