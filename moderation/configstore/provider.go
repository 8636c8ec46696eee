package configstore

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
)

// marker for "key known to be absent", so misses are also cached
const tombstone = "\x00absent"

// Provider is a read-through cached view over a config Store, with
// explicit invalidation on every write. Escalation thresholds and role
// membership are read through this on each evaluation, so a short cache
// TTL bounds staleness while writes take effect immediately.
type Provider struct {
	store  Store
	cache  Cache
	logger *slog.Logger
}

func NewProvider(store Store, cache Cache, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

func (p *Provider) Get(ctx context.Context, key string) (string, error) {
	cached, found, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn("config cache read failed", "key", key, "err", err)
	}
	if found {
		if cached == tombstone {
			return "", ErrNotFound
		}
		return cached, nil
	}
	val, err := p.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		if cerr := p.cache.Set(ctx, key, tombstone); cerr != nil {
			p.logger.Warn("config cache write failed", "key", key, "err", cerr)
		}
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if cerr := p.cache.Set(ctx, key, val); cerr != nil {
		p.logger.Warn("config cache write failed", "key", key, "err", cerr)
	}
	return val, nil
}

// GetInt parses the value as a decimal integer, falling back to def when
// the key is absent or malformed.
func (p *Provider) GetInt(ctx context.Context, key string, def int) (int, error) {
	val, err := p.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		p.logger.Warn("malformed integer config value", "key", key, "val", val)
		return def, nil
	}
	return n, nil
}

func (p *Provider) Set(ctx context.Context, key, val string) error {
	if err := p.store.Set(ctx, key, val); err != nil {
		return err
	}
	return p.Invalidate(ctx, key)
}

func (p *Provider) SetMulti(ctx context.Context, vals map[string]string) error {
	if err := p.store.SetMulti(ctx, vals); err != nil {
		return err
	}
	var firstErr error
	for k := range vals {
		if err := p.Invalidate(ctx, k); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Update rewrites a group of keys from their current stored values,
// inside one store transaction. The recompute never sees this process's
// cache: fn reads the authoritative store, so concurrent updates (other
// goroutines or other processes) cannot be overwritten from a stale
// snapshot. The cache is invalidated after the write lands.
func (p *Provider) Update(ctx context.Context, keys []string, fn UpdateFunc) error {
	if err := p.store.Update(ctx, keys, fn); err != nil {
		return err
	}
	var firstErr error
	for _, k := range keys {
		if err := p.Invalidate(ctx, k); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Provider) Invalidate(ctx context.Context, key string) error {
	return p.cache.Purge(ctx, key)
}
