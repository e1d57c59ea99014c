// Package fs provides file-backed session snapshot and settings stores. The
// snapshot is one JSON file, replaced atomically on every save so a crash
// mid-write never leaves a torn snapshot behind.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	domain "github.com/ahrav/orderharvest/internal/domain/session"
)

// SnapshotStore persists the session snapshot as a single JSON file.
type SnapshotStore struct{ path string }

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates a store writing to the given file path.
func NewSnapshotStore(path string) *SnapshotStore { return &SnapshotStore{path: path} }

// Save writes the snapshot via a temp file and rename.
func (s *SnapshotStore) Save(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session snapshot: %w", err)
	}
	return writeAtomic(s.path, data)
}

// Load reads the snapshot file; a missing file yields (nil, nil).
func (s *SnapshotStore) Load(ctx context.Context) (*domain.Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session snapshot: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session snapshot: %w", err)
	}
	return &sess, nil
}

// Clear removes the snapshot file if present.
func (s *SnapshotStore) Clear(ctx context.Context) error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// SettingsStore persists user settings as a JSON file alongside the snapshot.
type SettingsStore struct{ path string }

var _ domain.SettingsStore = (*SettingsStore)(nil)

// NewSettingsStore creates a settings store writing to the given file path.
func NewSettingsStore(path string) *SettingsStore { return &SettingsStore{path: path} }

// Save writes the settings via a temp file and rename.
func (s *SettingsStore) Save(ctx context.Context, st domain.Settings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	return writeAtomic(s.path, data)
}

// Load reads the settings file; a missing file yields defaults.
func (s *SettingsStore) Load(ctx context.Context) (domain.Settings, error) {
	var st domain.Settings
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("reading settings: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("decoding settings: %w", err)
	}
	return st, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot file: %w", err)
	}
	return nil
}
