package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/jobwatch/internal/domain/background"
	"github.com/ahrav/jobwatch/internal/infra/storage"
)

var _ background.StateStore = (*stateStore)(nil)

var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

const (
	loadStateQuery = `SELECT value FROM monitor_state WHERE state_key = $1`

	upsertStateQuery = `
INSERT INTO monitor_state (state_key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (state_key) DO UPDATE
SET value = EXCLUDED.value, updated_at = NOW()`
)

// stateStore persists the monitor's item list in the monitor_state table, one
// row per key.
type stateStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// NewStateStore creates a PostgreSQL-backed state store. The schema is created
// by storage.Migrate.
func NewStateStore(pool *pgxpool.Pool, tracer trace.Tracer) *stateStore {
	return &stateStore{pool: pool, tracer: tracer}
}

// Load returns the value stored under key, or background.ErrStateNotFound.
func (s *stateStore) Load(ctx context.Context, key string) (string, error) {
	var value string
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("state_key", key),
	)
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.load_monitor_state", dbAttrs, func(ctx context.Context) error {
		err := s.pool.QueryRow(ctx, loadStateQuery, key).Scan(&value)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return background.ErrStateNotFound
			}
			return fmt.Errorf("failed to load monitor state: %w", err)
		}
		return nil
	})
	return value, err
}

// Save upserts the value stored under key.
func (s *stateStore) Save(ctx context.Context, key, value string) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("state_key", key),
		attribute.Int("value_size", len(value)),
	)
	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.save_monitor_state", dbAttrs, func(ctx context.Context) error {
		if _, err := s.pool.Exec(ctx, upsertStateQuery, key, value); err != nil {
			return fmt.Errorf("failed to save monitor state: %w", err)
		}
		return nil
	})
}
