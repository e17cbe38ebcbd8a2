package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chantier/backend/internal/domain/project"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	snapshotKeyPrefix   = "ledger:snapshot:"
	generationKeyPrefix = "ledger:snapshot-gen:"
)

// setIfGeneration writes the snapshot only while the project's generation
// still matches the one the snapshot was computed under. A missing
// generation key reads as 0.
var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[1]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisSnapshotCache stores project financial snapshots in Redis.
// Every call goes through a circuit breaker; a failing or open Redis is
// reported as a miss so reads fall back to the database.
type RedisSnapshotCache struct {
	client     *redis.Client
	ownsClient bool
	breaker    *gobreaker.CircuitBreaker
	ttl        time.Duration
	opTimeout  time.Duration
	logger     *zap.Logger
}

// RedisSnapshotCacheOption is a functional option for configuring the cache
type RedisSnapshotCacheOption func(*RedisSnapshotCache)

// WithTTL sets how long a snapshot stays cached
func WithTTL(ttl time.Duration) RedisSnapshotCacheOption {
	return func(c *RedisSnapshotCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithOperationTimeout bounds every Redis round trip
func WithOperationTimeout(d time.Duration) RedisSnapshotCacheOption {
	return func(c *RedisSnapshotCache) {
		if d > 0 {
			c.opTimeout = d
		}
	}
}

// WithBreaker sets the consecutive failures that open the breaker and how long it stays open
func WithBreaker(maxFailures uint32, openTimeout time.Duration) RedisSnapshotCacheOption {
	return func(c *RedisSnapshotCache) {
		c.breaker = newBreaker(maxFailures, openTimeout, c.logger)
	}
}

// WithCacheLogger sets the logger for the cache
func WithCacheLogger(logger *zap.Logger) RedisSnapshotCacheOption {
	return func(c *RedisSnapshotCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRedisSnapshotCache connects to Redis and verifies the connection
func NewRedisSnapshotCache(ctx context.Context, opts *redis.Options, options ...RedisSnapshotCacheOption) (*RedisSnapshotCache, error) {
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := NewRedisSnapshotCacheWithClient(client, options...)
	c.ownsClient = true
	return c, nil
}

// NewRedisSnapshotCacheWithClient creates a cache on a shared client.
// The caller keeps ownership of the client.
func NewRedisSnapshotCacheWithClient(client *redis.Client, options ...RedisSnapshotCacheOption) *RedisSnapshotCache {
	c := &RedisSnapshotCache{
		client:    client,
		ttl:       5 * time.Minute,
		opTimeout: 200 * time.Millisecond,
		logger:    zap.NewNop(),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = newBreaker(5, 30*time.Second, c.logger)
	}
	return c
}

func newBreaker(maxFailures uint32, openTimeout time.Duration, logger *zap.Logger) *gobreaker.CircuitBreaker {
	if maxFailures == 0 {
		maxFailures = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "snapshot-cache",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

func snapshotKey(projectID uuid.UUID) string {
	return snapshotKeyPrefix + projectID.String()
}

func generationKey(projectID uuid.UUID) string {
	return generationKeyPrefix + projectID.String()
}

// Get returns the cached snapshot. Any Redis error is a miss.
func (c *RedisSnapshotCache) Get(ctx context.Context, projectID uuid.UUID) (*project.FinancialSnapshot, bool) {
	v, err := c.breaker.Execute(func() (any, error) {
		opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
		defer cancel()
		data, err := c.client.Get(opCtx, snapshotKey(projectID)).Bytes()
		if errors.Is(err, redis.Nil) {
			// a miss is a healthy answer
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		c.logger.Debug("Snapshot cache unavailable, treating as miss",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		return nil, false
	}
	data, _ := v.([]byte)
	if data == nil {
		return nil, false
	}

	var snap project.FinancialSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Warn("Dropping corrupted snapshot cache entry",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		_ = c.Invalidate(ctx, projectID)
		return nil, false
	}
	return &snap, true
}

// Generation returns the project's write generation, 0 before the first write
func (c *RedisSnapshotCache) Generation(ctx context.Context, projectID uuid.UUID) (int64, error) {
	v, err := c.breaker.Execute(func() (any, error) {
		opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
		defer cancel()
		gen, err := c.client.Get(opCtx, generationKey(projectID)).Int64()
		if errors.Is(err, redis.Nil) {
			return int64(0), nil
		}
		return gen, err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot generation: %w", err)
	}
	return v.(int64), nil
}

// Set stores the snapshot with the configured TTL unless a write has moved
// the project past gen since it was computed. Failures are logged only.
func (c *RedisSnapshotCache) Set(ctx context.Context, snapshot *project.FinancialSnapshot, gen int64) {
	if snapshot == nil {
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		c.logger.Error("Failed to marshal snapshot", zap.Error(err))
		return
	}
	v, err := c.breaker.Execute(func() (any, error) {
		opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
		defer cancel()
		keys := []string{generationKey(snapshot.ProjectID), snapshotKey(snapshot.ProjectID)}
		return setIfGeneration.Run(opCtx, c.client, keys,
			strconv.FormatInt(gen, 10), data, c.ttl.Milliseconds()).Int()
	})
	if err != nil {
		c.logger.Debug("Failed to cache snapshot",
			zap.String("project_id", snapshot.ProjectID.String()),
			zap.Error(err))
		return
	}
	if stored, _ := v.(int); stored == 0 {
		c.logger.Debug("Discarding snapshot computed before a newer write",
			zap.String("project_id", snapshot.ProjectID.String()),
			zap.Int64("generation", gen))
	}
}

// Invalidate advances the project's generation and removes its snapshot in
// one transaction, so an in-flight read computed before the write can no
// longer be stored
func (c *RedisSnapshotCache) Invalidate(ctx context.Context, projectID uuid.UUID) error {
	_, err := c.breaker.Execute(func() (any, error) {
		opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
		defer cancel()
		return c.client.TxPipelined(opCtx, func(pipe redis.Pipeliner) error {
			pipe.Incr(opCtx, generationKey(projectID))
			pipe.Del(opCtx, snapshotKey(projectID))
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate snapshot: %w", err)
	}
	return nil
}

// State reports the breaker state for health checks
func (c *RedisSnapshotCache) State() string {
	return c.breaker.State().String()
}

// Close releases the client when the cache created it
func (c *RedisSnapshotCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}
