package delivery

import (
	"allocation-service/internal/cache"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Remote is an optional shared tier (Redis). Get reports absence with
// cache.ErrMiss. Its failures never fail a read.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DelPrefix(ctx context.Context, prefix string) (int, error)
}

type Config struct {
	ZoneTTL         time.Duration
	AvailabilityTTL time.Duration
	MaxEntries      int
	BatchWindow     time.Duration
	MaxBatchSize    int
	BatchTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		ZoneTTL:         time.Hour,
		AvailabilityTTL: 15 * time.Minute,
		MaxEntries:      1000,
		BatchWindow:     100 * time.Millisecond,
		MaxBatchSize:    10,
		BatchTimeout:    5 * time.Second,
	}
}

type entry struct {
	payload   []byte
	createdAt time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Batches int64 `json:"batches"`
}

// Cache memoizes payloads with a per-entry TTL. Concurrent misses on one key
// share a single computation.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	max     int

	remote Remote
	group  singleflight.Group
	log    *zap.Logger
	now    func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

func NewCache(maxEntries int, remote Remote, log *zap.Logger) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultConfig().MaxEntries
	}
	return &Cache{
		entries: map[string]entry{},
		max:     maxEntries,
		remote:  remote,
		log:     log,
		now:     time.Now,
	}
}

func (c *Cache) SetClock(now func() time.Time) { c.now = now }

func (c *Cache) lookup(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || e.expired(c.now()) {
		return nil, false
	}
	return e.payload, true
}

func (c *Cache) store(key string, payload []byte, ttl time.Duration) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.max {
		c.evictLocked(now)
	}
	c.entries[key] = entry{payload: payload, createdAt: now, ttl: ttl}
}

// evictLocked drops expired entries, then the oldest one if still full.
func (c *Cache) evictLocked(now time.Time) {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || e.createdAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.createdAt
		}
	}
	if len(c.entries) >= c.max && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// GetOrCompute returns the cached payload for key or computes and stores it.
// Errors from compute are not cached. The shared compute runs detached from
// the caller that started it; each caller only stops waiting on its own ctx.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if b, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return b, nil
	}

	dctx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if b, ok := c.lookup(key); ok {
			c.hits.Add(1)
			return b, nil
		}
		if b, ok := c.fromRemote(dctx, key); ok {
			c.hits.Add(1)
			c.store(key, b, ttl)
			return b, nil
		}
		c.misses.Add(1)
		b, err := compute(dctx)
		if err != nil {
			return nil, err
		}
		c.store(key, b, ttl)
		c.toRemote(dctx, key, b, ttl)
		return b, nil
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) fromRemote(ctx context.Context, key string) ([]byte, bool) {
	if c.remote == nil {
		return nil, false
	}
	b, err := c.remote.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.log.Warn("remote cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return b, true
}

func (c *Cache) toRemote(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if c.remote == nil {
		return
	}
	if err := c.remote.Set(ctx, key, b, ttl); err != nil {
		c.log.Warn("remote cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every key starting with prefix, locally and remotely.
func (c *Cache) Invalidate(ctx context.Context, prefix string) int {
	c.mu.Lock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	c.mu.Unlock()

	if c.remote != nil {
		if _, err := c.remote.DelPrefix(ctx, prefix); err != nil {
			c.log.Warn("remote cache invalidate failed", zap.String("prefix", prefix), zap.Error(err))
		}
	}
	return n
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Stats() Stats {
	return Stats{Entries: c.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}
