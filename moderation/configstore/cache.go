package configstore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is the read-through tier the Provider puts in front of a Store.
// Get returns a found flag so a cached empty value and a cache miss are
// distinguishable; the Provider caches known-absent keys too. Purge is
// best-effort invalidation: it only bounds read staleness, so writes
// that must see the authoritative values go through Store.Update.
type Cache interface {
	Get(ctx context.Context, key string) (val string, found bool, err error)
	Set(ctx context.Context, key, val string) error
	Purge(ctx context.Context, key string) error
}

// MemCache holds config values in an expiring in-process LRU.
type MemCache struct {
	data *expirable.LRU[string, string]
}

var _ Cache = (*MemCache)(nil)

func NewMemCache(capacity int, ttl time.Duration) *MemCache {
	return &MemCache{
		data: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

func (c *MemCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := c.data.Get(key)
	return v, ok, nil
}

func (c *MemCache) Set(ctx context.Context, key, val string) error {
	c.data.Add(key, val)
	return nil
}

func (c *MemCache) Purge(ctx context.Context, key string) error {
	c.data.Remove(key)
	return nil
}
