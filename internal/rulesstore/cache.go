package rulesstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
)

// Cache fronts RulesStore reads so repeated ComplianceEvaluator lookups for
// a busy firm don't all hit disk. A miss or a cache error is never fatal:
// callers fall through to the authoritative file-backed load.
type Cache interface {
	Get(ctx context.Context, firmKey string) (rules.RulesBundle, bool)
	Set(ctx context.Context, firmKey string, bundle rules.RulesBundle)
	Invalidate(ctx context.Context, firmKey string)
}

// MemoryCache is the default Cache: an in-process map, good enough for a
// single-instance deployment and for tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]rules.RulesBundle
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]rules.RulesBundle)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, firmKey string) (rules.RulesBundle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bundle, ok := c.entries[firmKey]
	return bundle, ok
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, firmKey string, bundle rules.RulesBundle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[firmKey] = bundle
}

// Invalidate implements Cache.
func (c *MemoryCache) Invalidate(_ context.Context, firmKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, firmKey)
}

// RedisCache is an opt-in read-through cache backend, for deployments that
// run more than one evaluator instance against the same firm population and
// need the cache shared instead of per-process.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache builds a RedisCache. addr is REDIS_ADDR-style host:port.
func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		ttl:    ttl,
	}
}

func cacheKey(firmKey string) string {
	return fmt.Sprintf("rulesstore:bundle:%s", firmKey)
}

// Get implements Cache. Any Redis error is treated as a cache miss.
func (c *RedisCache) Get(ctx context.Context, firmKey string) (rules.RulesBundle, bool) {
	raw, err := c.client.Get(ctx, cacheKey(firmKey)).Bytes()
	if err != nil {
		return rules.RulesBundle{}, false
	}
	var bundle rules.RulesBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return rules.RulesBundle{}, false
	}
	return bundle, true
}

// Set implements Cache. A marshal or write error is swallowed; the cache is
// strictly best-effort.
func (c *RedisCache) Set(ctx context.Context, firmKey string, bundle rules.RulesBundle) {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(firmKey), raw, c.ttl).Err()
}

// Invalidate implements Cache.
func (c *RedisCache) Invalidate(ctx context.Context, firmKey string) {
	_ = c.client.Del(ctx, cacheKey(firmKey)).Err()
}
