package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chantier/backend/internal/domain/project"
	"github.com/google/uuid"
)

const defaultCleanupInterval = 30 * time.Second

// InMemorySnapshotCache keeps snapshots in process memory. Only a single
// instance deployment may use it: invalidations of other instances never
// reach it.
type InMemorySnapshotCache struct {
	entries sync.Map // map[uuid.UUID]*cacheEntry
	ttl     time.Duration

	// mu orders generation bumps against conditional stores
	mu          sync.Mutex
	generations map[uuid.UUID]int64

	stopCh  chan struct{}
	stopped int32

	hits   int64
	misses int64
}

type cacheEntry struct {
	value     project.FinancialSnapshot
	expiresAt time.Time
}

func (e *cacheEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// NewInMemorySnapshotCache creates the cache and starts its cleanup goroutine
func NewInMemorySnapshotCache(ttl time.Duration) *InMemorySnapshotCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &InMemorySnapshotCache{
		ttl:         ttl,
		generations: make(map[uuid.UUID]int64),
		stopCh:      make(chan struct{}),
	}
	go c.cleanupExpired()
	return c
}

// Get returns a copy of the cached snapshot
func (c *InMemorySnapshotCache) Get(_ context.Context, projectID uuid.UUID) (*project.FinancialSnapshot, bool) {
	if v, ok := c.entries.Load(projectID); ok {
		entry := v.(*cacheEntry)
		if !entry.isExpired() {
			atomic.AddInt64(&c.hits, 1)
			snap := entry.value
			return &snap, true
		}
		c.entries.Delete(projectID)
	}
	atomic.AddInt64(&c.misses, 1)
	return nil, false
}

// Generation returns the project's write generation
func (c *InMemorySnapshotCache) Generation(_ context.Context, projectID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[projectID], nil
}

// Set stores a copy of the snapshot unless the project moved past gen
func (c *InMemorySnapshotCache) Set(_ context.Context, snapshot *project.FinancialSnapshot, gen int64) {
	if snapshot == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[snapshot.ProjectID] != gen {
		return
	}
	c.entries.Store(snapshot.ProjectID, &cacheEntry{
		value:     *snapshot,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Invalidate advances the project's generation and removes its snapshot
func (c *InMemorySnapshotCache) Invalidate(_ context.Context, projectID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[projectID]++
	c.entries.Delete(projectID)
	return nil
}

// Stats returns hit and miss counters
func (c *InMemorySnapshotCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *InMemorySnapshotCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

func (c *InMemorySnapshotCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.entries.Range(func(key, value any) bool {
				if value.(*cacheEntry).isExpired() {
					c.entries.Delete(key)
				}
				return true
			})
		}
	}
}
