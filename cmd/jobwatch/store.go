package main

import (
	"context"
	"fmt"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/jobwatch/internal/config"
	"github.com/ahrav/jobwatch/internal/domain/background"
	"github.com/ahrav/jobwatch/internal/infra/storage"
	"github.com/ahrav/jobwatch/internal/infra/storage/monitor/memory"
	"github.com/ahrav/jobwatch/internal/infra/storage/monitor/postgres"
	"github.com/ahrav/jobwatch/internal/infra/storage/monitor/redis"
)

// newStateStore builds the store selected by cfg. The returned func releases
// its connections.
func newStateStore(
	ctx context.Context,
	cfg config.StorageConfig,
	tracer trace.Tracer,
) (background.StateStore, func(), error) {
	switch cfg.Type {
	case config.StorageTypePostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse db config: %w", err)
		}
		poolCfg.MinConns = 1
		poolCfg.MaxConns = 4
		poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open db: %w", err)
		}
		if err := storage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return postgres.NewStateStore(pool, tracer), pool.Close, nil

	case config.StorageTypeRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		return redis.NewStateStore(client, tracer), func() { _ = client.Close() }, nil

	case config.StorageTypeMemory, "":
		return memory.NewStateStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
