package capability

import (
	"time"

	cache "github.com/patrickmn/go-cache"
)

const (
	defaultCacheTTL     = 10 * time.Minute
	defaultCacheCleanup = 30 * time.Minute
)

// Cached memoizes another Lookup. It is meant for lookups backed by a remote
// catalogue; answers are reference data so staleness within the TTL is fine.
type Cached struct {
	next  Lookup
	store *cache.Cache
}

// NewCached wraps next with a TTL cache. A zero ttl uses the default.
func NewCached(next Lookup, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cached{
		next:  next,
		store: cache.New(ttl, defaultCacheCleanup),
	}
}

// OptimalHistoryLength implements Lookup
func (c *Cached) OptimalHistoryLength(modelID string) int {
	key := "history:" + modelID
	if v, ok := c.store.Get(key); ok {
		return v.(int)
	}
	n := c.next.OptimalHistoryLength(modelID)
	c.store.Set(key, n, cache.DefaultExpiration)
	return n
}

// IsImageGenerationModel implements Lookup
func (c *Cached) IsImageGenerationModel(modelID string) bool {
	return c.flag("image:"+modelID, func() bool { return c.next.IsImageGenerationModel(modelID) })
}

// IsReasoningModel implements Lookup
func (c *Cached) IsReasoningModel(modelID string) bool {
	return c.flag("reasoning:"+modelID, func() bool { return c.next.IsReasoningModel(modelID) })
}

func (c *Cached) flag(key string, load func() bool) bool {
	if v, ok := c.store.Get(key); ok {
		return v.(bool)
	}
	b := load()
	c.store.Set(key, b, cache.DefaultExpiration)
	return b
}

// Flush drops every cached answer
func (c *Cached) Flush() {
	c.store.Flush()
}
