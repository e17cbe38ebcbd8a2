//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newRedisClient starts a throwaway Redis container
func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisSnapshotCache_Generations(t *testing.T) {
	c := NewRedisSnapshotCacheWithClient(newRedisClient(t), WithOperationTimeout(time.Second))
	ctx := context.Background()
	id := uuid.New()

	gen, err := c.Generation(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, gen)

	c.Set(ctx, newSnapshot(id), gen)
	got, ok := c.Get(ctx, id)
	require.True(t, ok)
	assert.Equal(t, "3000.00", got.SpentAmount.String())

	require.NoError(t, c.Invalidate(ctx, id))
	_, ok = c.Get(ctx, id)
	assert.False(t, ok)

	// a read that started before the invalidation cannot repopulate
	c.Set(ctx, newSnapshot(id), gen)
	_, ok = c.Get(ctx, id)
	assert.False(t, ok)

	gen, err = c.Generation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
	c.Set(ctx, newSnapshot(id), gen)
	_, ok = c.Get(ctx, id)
	assert.True(t, ok)
}
