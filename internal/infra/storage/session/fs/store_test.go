package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/ahrav/orderharvest/internal/domain/session"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	store := NewSnapshotStore(path)
	ctx := context.Background()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	sess := domain.NewSession(100)
	require.NoError(t, sess.BeginRun("r1", "https://shop.example.com", domain.TimeFilter{Value: "last30"}, false, ""))
	require.NoError(t, store.Save(ctx, sess))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "r1", loaded.RunID())
	assert.Equal(t, domain.PhaseRunning, loaded.Phase())
}

func TestSnapshotStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewSnapshotStore(path)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewSession(0)))
	require.NoError(t, store.Clear(ctx))
	// Clearing twice is fine.
	require.NoError(t, store.Clear(ctx))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSnapshotStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewSnapshotStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestSnapshotStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(filepath.Join(dir, "session.json"))
	require.NoError(t, store.Save(context.Background(), domain.NewSession(0)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session.json", entries[0].Name())
}

func TestSettingsStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewSettingsStore(path)
	ctx := context.Background()

	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, st.NotifyOnCompletion)

	require.NoError(t, store.Save(ctx, domain.Settings{NotifyOnCompletion: true}))
	st, err = store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, st.NotifyOnCompletion)
}
