package cache

import (
	"context"
	"errors"

	"github.com/chantier/backend/internal/domain/project"
	"github.com/chantier/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SnapshotCache is the common surface of the Redis and in-memory caches
type SnapshotCache interface {
	Get(ctx context.Context, projectID uuid.UUID) (*project.FinancialSnapshot, bool)
	Generation(ctx context.Context, projectID uuid.UUID) (int64, error)
	Set(ctx context.Context, snapshot *project.FinancialSnapshot, gen int64)
	Invalidate(ctx context.Context, projectID uuid.UUID) error
	Close() error
}

var (
	_ SnapshotCache = (*RedisSnapshotCache)(nil)
	_ SnapshotCache = (*InMemorySnapshotCache)(nil)
	_ SnapshotCache = NoSnapshotCache{}
)

// NoSnapshotCache never stores anything; every read goes to the database
type NoSnapshotCache struct{}

func (NoSnapshotCache) Get(context.Context, uuid.UUID) (*project.FinancialSnapshot, bool) {
	return nil, false
}

func (NoSnapshotCache) Generation(context.Context, uuid.UUID) (int64, error) {
	return 0, errNoCache
}

func (NoSnapshotCache) Set(context.Context, *project.FinancialSnapshot, int64) {}

func (NoSnapshotCache) Invalidate(context.Context, uuid.UUID) error { return nil }

func (NoSnapshotCache) Close() error { return nil }

var errNoCache = errors.New("snapshot cache disabled")

// NewSnapshotCache returns a Redis-backed cache when Redis is enabled and
// reachable, and an in-memory one when Redis is disabled. An enabled but
// unreachable Redis means several instances share the ledger, so no cache is
// used rather than a per-process one that other instances cannot invalidate.
func NewSnapshotCache(ctx context.Context, redisCfg config.RedisConfig, cacheCfg config.CacheConfig, logger *zap.Logger) SnapshotCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !redisCfg.Enabled {
		logger.Info("Redis disabled, using in-memory snapshot cache")
		return NewInMemorySnapshotCache(cacheCfg.SnapshotTTL)
	}

	c, err := NewRedisSnapshotCache(ctx,
		&redis.Options{
			Addr:     redisCfg.Addr(),
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		},
		WithCacheLogger(logger),
		WithTTL(cacheCfg.SnapshotTTL),
		WithOperationTimeout(cacheCfg.OperationTimeout),
		WithBreaker(cacheCfg.BreakerMaxFailures, cacheCfg.BreakerOpenTimeout),
	)
	if err != nil {
		logger.Warn("Redis unavailable, snapshots are computed on every read",
			zap.String("addr", redisCfg.Addr()),
			zap.Error(err))
		return NoSnapshotCache{}
	}
	logger.Info("Using Redis snapshot cache", zap.String("addr", redisCfg.Addr()))
	return c
}
