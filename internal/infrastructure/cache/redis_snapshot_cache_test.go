package cache

import (
	"context"
	"testing"
	"time"

	"github.com/chantier/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableClient points at a closed port so every command fails fast
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRedisSnapshotCache_FailuresAreMisses(t *testing.T) {
	client := unreachableClient()
	defer client.Close()

	c := NewRedisSnapshotCacheWithClient(client, WithOperationTimeout(100*time.Millisecond))
	ctx := context.Background()
	id := uuid.New()

	c.Set(ctx, newSnapshot(id), 0)
	_, ok := c.Get(ctx, id)
	assert.False(t, ok)
	_, err := c.Generation(ctx, id)
	assert.Error(t, err)
	assert.Error(t, c.Invalidate(ctx, id))
}

func TestRedisSnapshotCache_BreakerOpens(t *testing.T) {
	client := unreachableClient()
	defer client.Close()

	c := NewRedisSnapshotCacheWithClient(client,
		WithOperationTimeout(100*time.Millisecond),
		WithBreaker(2, time.Minute),
	)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, ok := c.Get(ctx, uuid.New())
		assert.False(t, ok)
	}
	assert.Equal(t, gobreaker.StateOpen.String(), c.State())

	// open breaker short-circuits without touching Redis
	err := c.Invalidate(ctx, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestRedisSnapshotCache_CloseLeavesSharedClient(t *testing.T) {
	client := unreachableClient()
	defer client.Close()

	c := NewRedisSnapshotCacheWithClient(client)
	require.NoError(t, c.Close())
	assert.Equal(t, gobreaker.StateClosed.String(), c.State())
}

func TestSnapshotKey(t *testing.T) {
	id := uuid.MustParse("9b2f3c1e-0000-4000-8000-000000000001")
	assert.Equal(t, "ledger:snapshot:9b2f3c1e-0000-4000-8000-000000000001", snapshotKey(id))
	assert.Equal(t, "ledger:snapshot-gen:9b2f3c1e-0000-4000-8000-000000000001", generationKey(id))
}

func TestNewSnapshotCache_Fallbacks(t *testing.T) {
	cacheCfg := config.CacheConfig{SnapshotTTL: time.Minute}

	t.Run("redis disabled", func(t *testing.T) {
		c := NewSnapshotCache(context.Background(), config.RedisConfig{Enabled: false}, cacheCfg, nil)
		defer c.Close()
		assert.IsType(t, &InMemorySnapshotCache{}, c)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		c := NewSnapshotCache(ctx, config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}, cacheCfg, nil)
		defer c.Close()
		assert.IsType(t, NoSnapshotCache{}, c)

		id := uuid.New()
		c.Set(ctx, newSnapshot(id), 0)
		_, ok := c.Get(ctx, id)
		assert.False(t, ok)
		_, err := c.Generation(ctx, id)
		assert.Error(t, err)
	})
}
