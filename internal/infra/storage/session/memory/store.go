// Package memory provides in-memory session snapshot and settings stores for
// tests and development.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	domain "github.com/ahrav/orderharvest/internal/domain/session"
)

// SnapshotStore keeps the serialized session snapshot in memory.
type SnapshotStore struct {
	mu   sync.RWMutex
	data []byte
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates an empty in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore { return &SnapshotStore{} }

// Save overwrites the stored snapshot with the session's serialized form.
func (s *SnapshotStore) Save(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// Load returns the stored session, or (nil, nil) when none exists.
func (s *SnapshotStore) Load(ctx context.Context) (*domain.Session, error) {
	s.mu.RLock()
	data := s.data
	s.mu.RUnlock()
	if data == nil {
		return nil, nil
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Clear discards the stored snapshot.
func (s *SnapshotStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}

// SettingsStore keeps user settings in memory.
type SettingsStore struct {
	mu sync.RWMutex
	st domain.Settings
}

var _ domain.SettingsStore = (*SettingsStore)(nil)

// NewSettingsStore creates an in-memory settings store with defaults.
func NewSettingsStore() *SettingsStore { return &SettingsStore{} }

// Save stores the settings.
func (s *SettingsStore) Save(ctx context.Context, st domain.Settings) error {
	s.mu.Lock()
	s.st = st
	s.mu.Unlock()
	return nil
}

// Load returns the stored settings; defaults when never saved.
func (s *SettingsStore) Load(ctx context.Context) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st, nil
}
