package configstore

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// RedisCache caches config values in redis with a TinyLFU local tier.
// Another process's Purge does not reach this process's local tier, so
// staleness is bounded by the TTL, not by invalidation.
type RedisCache struct {
	data *cache.Cache
	ttl  time.Duration
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, ttl),
	})
	return &RedisCache{
		data: data,
		ttl:  ttl,
	}, nil
}

func redisConfigKey(key string) string {
	return "config/" + key
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	var val string
	err := c.data.Get(ctx, redisConfigKey(key), &val)
	if err == cache.ErrCacheMiss {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, val string) error {
	return c.data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisConfigKey(key),
		Value: val,
		TTL:   c.ttl,
	})
}

func (c *RedisCache) Purge(ctx context.Context, key string) error {
	err := c.data.Delete(ctx, redisConfigKey(key))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}
