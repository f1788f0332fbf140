package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/jobwatch/internal/domain/background"
	"github.com/ahrav/jobwatch/internal/infra/storage"
)

var _ background.StateStore = (*stateStore)(nil)

var defaultRedisAttributes = []attribute.KeyValue{
	attribute.String("db.system", "redis"),
}

// stateStore persists the monitor's item list as plain redis string keys.
type stateStore struct {
	client goredis.UniversalClient
	tracer trace.Tracer
}

// NewStateStore creates a redis-backed state store.
func NewStateStore(client goredis.UniversalClient, tracer trace.Tracer) *stateStore {
	return &stateStore{client: client, tracer: tracer}
}

// Load returns the value stored under key, or background.ErrStateNotFound.
func (s *stateStore) Load(ctx context.Context, key string) (string, error) {
	var value string
	attrs := append(defaultRedisAttributes, attribute.String("state_key", key))
	err := storage.ExecuteAndTrace(ctx, s.tracer, "redis.load_monitor_state", attrs, func(ctx context.Context) error {
		v, err := s.client.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				return background.ErrStateNotFound
			}
			return fmt.Errorf("failed to load monitor state: %w", err)
		}
		value = v
		return nil
	})
	return value, err
}

// Save replaces the value stored under key. The key never expires.
func (s *stateStore) Save(ctx context.Context, key, value string) error {
	attrs := append(
		defaultRedisAttributes,
		attribute.String("state_key", key),
		attribute.Int("value_size", len(value)),
	)
	return storage.ExecuteAndTrace(ctx, s.tracer, "redis.save_monitor_state", attrs, func(ctx context.Context) error {
		if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
			return fmt.Errorf("failed to save monitor state: %w", err)
		}
		return nil
	})
}
