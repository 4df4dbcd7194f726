package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
)

// ErrCacheMiss is returned by Get when the key is absent.
var ErrCacheMiss = errors.New(errors.ErrCodeNotFound, "cache miss")

// Cache is a JSON read-side cache in front of the theme and batch queries.
type Cache struct {
	client     *Client
	logger     logging.Logger
	defaultTTL time.Duration
	group      singleflight.Group
}

// NewCache constructs the cache with the configured default TTL.
func NewCache(client *Client, log logging.Logger) *Cache {
	ttl := client.cfg.DefaultTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, logger: log, defaultTTL: ttl}
}

// Get loads and decodes a cached value into dest.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Raw().Get(ctx, c.client.key(key)).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "reading cache key")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decoding cached value")
	}
	return nil
}

// Set encodes and stores a value.  A non-positive TTL uses the default.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encoding cache value")
	}
	if err := c.client.Raw().Set(ctx, c.client.key(key), data, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "writing cache key")
	}
	return nil
}

// Delete drops keys, e.g. after a review decision invalidates a theme list.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.client.key(k)
	}
	if err := c.client.Raw().Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "deleting cache keys")
	}
	return nil
}

// GetOrLoad returns the cached value or runs loader once per key across
// concurrent callers, caching its result.
func (c *Cache) GetOrLoad(ctx context.Context, key string, dest any, ttl time.Duration,
	loader func(ctx context.Context) (any, error)) error {

	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	} else if !errors.IsCode(err, errors.ErrCodeNotFound) {
		c.logger.Warn("cache read failed, falling through to loader",
			logging.String("key", key), logging.Err(err))
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		return loader(ctx)
	})
	if err != nil {
		return err
	}

	if serr := c.Set(ctx, key, val, ttl); serr != nil {
		c.logger.Warn("caching loaded value failed",
			logging.String("key", key), logging.Err(serr))
	}

	// Round-trip through JSON so dest is filled the same way as a cache hit.
	data, err := json.Marshal(val)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encoding loaded value")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decoding loaded value")
	}
	return nil
}
