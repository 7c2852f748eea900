package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/akeroyd/covnet/internal/models"
)

// NetworkCacheStats tracks cache performance counters.
type NetworkCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// Snapshot returns a copy of the counters safe to serialize.
func (s *NetworkCacheStats) Snapshot() (hits, misses, sets int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Hits, s.Misses, s.Sets
}

// NetworkCache stores computed networks and matrices in Redis, keyed by
// scope and as-of date. A nil Redis client degrades to a no-op cache so
// the service keeps working when Redis is down.
type NetworkCache struct {
	redis  *redis.Client
	ttl    time.Duration
	stats  *NetworkCacheStats
	logger *logrus.Logger
	prefix string
}

// NewNetworkCache creates a result cache. redisClient may be nil.
func NewNetworkCache(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *NetworkCache {
	return &NetworkCache{
		redis:  redisClient,
		ttl:    ttl,
		stats:  &NetworkCacheStats{},
		logger: logger,
		prefix: "covnet:",
	}
}

func cacheKey(kind string, scope models.Scope, asOf time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", kind, scope.BorrowerID, scope.FacilityID, asOf.UTC().Format(time.RFC3339))
}

// GetNetwork retrieves a cached network for the scope and as-of date.
func (c *NetworkCache) GetNetwork(ctx context.Context, scope models.Scope, asOf time.Time) (*models.CovenantNetwork, bool) {
	var network models.CovenantNetwork
	if !c.get(ctx, cacheKey("network", scope, asOf), &network) {
		return nil, false
	}
	return &network, true
}

// SetNetwork stores a computed network.
func (c *NetworkCache) SetNetwork(ctx context.Context, network *models.CovenantNetwork) {
	c.set(ctx, cacheKey("network", network.Scope, network.AsOf), network)
}

// GetMatrix retrieves a cached correlation matrix.
func (c *NetworkCache) GetMatrix(ctx context.Context, scope models.Scope, asOf time.Time) (*models.CorrelationMatrix, bool) {
	var matrix models.CorrelationMatrix
	if !c.get(ctx, cacheKey("matrix", scope, asOf), &matrix) {
		return nil, false
	}
	return &matrix, true
}

// SetMatrix stores a computed matrix.
func (c *NetworkCache) SetMatrix(ctx context.Context, matrix *models.CorrelationMatrix) {
	c.set(ctx, cacheKey("matrix", matrix.Scope, matrix.AsOf), matrix)
}

func (c *NetworkCache) get(ctx context.Context, key string, out interface{}) bool {
	if c.redis == nil {
		return false
	}

	data, err := c.redis.Get(ctx, c.prefix+key).Result()
	if err == redis.Nil {
		c.miss()
		return false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		c.miss()
		return false
	}

	if err := json.Unmarshal([]byte(data), out); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache entry corrupt, treating as miss")
		c.miss()
		return false
	}

	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
	return true
}

func (c *NetworkCache) set(ctx context.Context, key string, value interface{}) {
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache serialization failed")
		return
	}

	if err := c.redis.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
		return
	}

	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()
}

func (c *NetworkCache) miss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}

// Invalidate removes every cached result. Called when fresh test data
// lands in the store.
func (c *NetworkCache) Invalidate(ctx context.Context) (int64, error) {
	if c.redis == nil {
		return 0, nil
	}

	var removed int64
	iter := c.redis.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete cache key %s: %w", iter.Val(), err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("cache invalidation scan failed: %w", err)
	}

	c.logger.WithField("removed", removed).Info("Result cache invalidated")
	return removed, nil
}

// Stats returns the current hit/miss/set counters.
func (c *NetworkCache) Stats() (hits, misses, sets int64) {
	return c.stats.Snapshot()
}
