package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_IsIdempotentAndReleasesConnections(t *testing.T) {
	pool, cleanup := SetupTestContainer(t)
	defer cleanup()

	ctx := context.Background()

	// SetupTestContainer has already migrated once.
	require.NoError(t, Migrate(ctx, pool))
	require.NoError(t, Migrate(ctx, pool))

	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'monitor_state')`,
	).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Zero(t, pool.Stat().AcquiredConns())
}

func TestMigrate_CanceledContext(t *testing.T) {
	pool, cleanup := SetupTestContainer(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, Migrate(ctx, pool))
	assert.Zero(t, pool.Stat().AcquiredConns())
}
