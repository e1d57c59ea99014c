package invoices

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ahrav/orderharvest/pkg/common"
)

// FileSaver downloads resolved documents into a root directory, one
// subdirectory per run. Filenames never overwrite: collisions are uniquified
// with a numeric suffix.
type FileSaver struct {
	root    string
	client  *http.Client
	limiter *common.RateLimiter
}

// NewFileSaver creates a saver rooted at the given directory.
func NewFileSaver(root string, client *http.Client) *FileSaver {
	if client == nil {
		client = http.DefaultClient
	}
	return &FileSaver{
		root:    root,
		client:  client,
		limiter: common.NewRateLimiter(fetchRPS, fetchBurst),
	}
}

// Ready verifies the save root exists and is writable. This is the
// batch-level precondition checked once before any task runs.
func (f *FileSaver) Ready(ctx context.Context) error {
	if err := os.MkdirAll(f.root, 0o755); err != nil {
		return fmt.Errorf("creating download root: %w", err)
	}
	probe, err := os.CreateTemp(f.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("download root not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

// Save fetches the document and writes it under root/dir/name, uniquifying
// the name on collision. Returns the final path.
func (f *FileSaver) Save(ctx context.Context, docURL, dir, name string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("document fetch returned %d", resp.StatusCode)
	}

	targetDir := filepath.Join(f.root, filepath.Clean(dir))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}

	path, out, err := createUnique(targetDir, name)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing document: %w", err)
	}
	return path, nil
}

// createUnique opens a new file named name in dir, appending -1, -2, ... to
// the stem until an unused name is found.
func createUnique(dir, name string) (string, *os.File, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)
		out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return path, out, nil
		}
		if !os.IsExist(err) {
			return "", nil, fmt.Errorf("creating document file: %w", err)
		}
	}
}
