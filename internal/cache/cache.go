package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache provides short-lived in-memory caching for passthrough brokerage
// responses, keeping the dashboard's polling off the brokerage rate limits
type Cache struct {
	responses *gocache.Cache
	ttl       time.Duration
}

// New creates a new cache instance
func New(ttl time.Duration) *Cache {
	return &Cache{
		responses: gocache.New(ttl, ttl*2),
		ttl:       ttl,
	}
}

// Get retrieves a cached response
func (c *Cache) Get(key string) (interface{}, bool) {
	return c.responses.Get(key)
}

// Set caches a response under key for the configured TTL
func (c *Cache) Set(key string, value interface{}) {
	c.responses.Set(key, value, c.ttl)
}

// Clear removes all cached data
func (c *Cache) Clear() {
	c.responses.Flush()
}

// ItemCount returns the number of cached entries
func (c *Cache) ItemCount() int {
	return c.responses.ItemCount()
}
