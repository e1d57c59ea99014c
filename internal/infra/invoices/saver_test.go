package invoices

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaverReady(t *testing.T) {
	root := filepath.Join(t.TempDir(), "downloads")
	require.NoError(t, NewFileSaver(root, nil).Ready(context.Background()))
	// Root directory is created as a side effect.
	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSaverSavesUnderRunDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, "%PDF-1.7 fake")
	}))
	defer srv.Close()

	root := t.TempDir()
	saver := NewFileSaver(root, srv.Client())

	path, err := saver.Save(context.Background(), srv.URL+"/doc.pdf", "ohv-20260901-120000", "114-2828-invoice.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ohv-20260901-120000", "114-2828-invoice.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 fake", string(data))
}

func TestSaverUniquifiesCollisions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, "doc")
	}))
	defer srv.Close()

	root := t.TempDir()
	saver := NewFileSaver(root, srv.Client())
	ctx := context.Background()

	first, err := saver.Save(ctx, srv.URL+"/doc.pdf", "run", "A-invoice.pdf")
	require.NoError(t, err)
	second, err := saver.Save(ctx, srv.URL+"/doc.pdf", "run", "A-invoice.pdf")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, filepath.Join(root, "run", "A-invoice-1.pdf"), second)
}

func TestSaverRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewFileSaver(t.TempDir(), srv.Client()).Save(context.Background(), srv.URL+"/doc.pdf", "run", "A-invoice.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
