// Package postgres provides PostgreSQL-backed session snapshot and settings
// stores. The session is one jsonb row overwritten wholesale on every save,
// matching the whole-snapshot persistence contract.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domain "github.com/ahrav/orderharvest/internal/domain/session"
	"github.com/ahrav/orderharvest/internal/infra/storage"
)

var defaultDBAttributes = []attribute.KeyValue{attribute.String("db.system", "postgresql")}

// Single-row keys; exactly one session and one settings blob exist at a time.
const (
	snapshotKey = "current"
	settingsKey = "default"
)

// SnapshotStore is a PostgreSQL-backed domain.SnapshotStore.
type SnapshotStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates a PostgreSQL-backed snapshot store.
func NewSnapshotStore(pool *pgxpool.Pool, tracer trace.Tracer) *SnapshotStore {
	return &SnapshotStore{pool: pool, tracer: tracer}
}

// Save upserts the serialized session into its single row.
func (s *SnapshotStore) Save(ctx context.Context, sess *domain.Session) error {
	dbAttrs := append(defaultDBAttributes,
		attribute.String("run_id", sess.RunID()),
		attribute.String("phase", sess.Phase().String()),
	)
	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.session.save_snapshot", dbAttrs, func(ctx context.Context) error {
		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("marshaling session snapshot: %w", err)
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO session_snapshots (id, data, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			snapshotKey, data)
		if err != nil {
			return fmt.Errorf("upserting session snapshot: %w", err)
		}
		return nil
	})
}

// Load reads the snapshot row; no row yields (nil, nil).
func (s *SnapshotStore) Load(ctx context.Context) (*domain.Session, error) {
	var sess *domain.Session
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.session.load_snapshot", defaultDBAttributes, func(ctx context.Context) error {
		var data []byte
		err := s.pool.QueryRow(ctx,
			`SELECT data FROM session_snapshots WHERE id = $1`, snapshotKey).Scan(&data)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("querying session snapshot: %w", err)
		}
		var restored domain.Session
		if err := json.Unmarshal(data, &restored); err != nil {
			return fmt.Errorf("decoding session snapshot: %w", err)
		}
		sess = &restored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Clear deletes the snapshot row.
func (s *SnapshotStore) Clear(ctx context.Context) error {
	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.session.clear_snapshot", defaultDBAttributes, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `DELETE FROM session_snapshots WHERE id = $1`, snapshotKey)
		return err
	})
}

// SettingsStore is a PostgreSQL-backed domain.SettingsStore.
type SettingsStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

var _ domain.SettingsStore = (*SettingsStore)(nil)

// NewSettingsStore creates a PostgreSQL-backed settings store.
func NewSettingsStore(pool *pgxpool.Pool, tracer trace.Tracer) *SettingsStore {
	return &SettingsStore{pool: pool, tracer: tracer}
}

// Save upserts the settings row.
func (s *SettingsStore) Save(ctx context.Context, st domain.Settings) error {
	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.session.save_settings", defaultDBAttributes, func(ctx context.Context) error {
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("marshaling settings: %w", err)
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO user_settings (id, data, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			settingsKey, data)
		if err != nil {
			return fmt.Errorf("upserting settings: %w", err)
		}
		return nil
	})
}

// Load reads the settings row; no row yields defaults.
func (s *SettingsStore) Load(ctx context.Context) (domain.Settings, error) {
	var st domain.Settings
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.session.load_settings", defaultDBAttributes, func(ctx context.Context) error {
		var data []byte
		err := s.pool.QueryRow(ctx,
			`SELECT data FROM user_settings WHERE id = $1`, settingsKey).Scan(&data)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("querying settings: %w", err)
		}
		return json.Unmarshal(data, &st)
	})
	return st, err
}
