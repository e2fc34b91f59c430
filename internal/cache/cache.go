package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/redis/go-redis/v9"

	"marketplace/internal/config"
	"marketplace/internal/monitor"
	"marketplace/pkg/log"
)

// ErrCacheMiss returned when a key is not present
var ErrCacheMiss = errors.New("cache miss")

// Cache best-effort key/value cache in front of the relational store.
// Values are JSON-encoded. A small in-process bigcache front absorbs hot
// reads; redis is the shared layer. The cache is never authoritative:
// every method failure degrades to a miss, and the write path must not
// consult it.
type Cache struct {
	rdb   *redis.Client
	local *bigcache.BigCache
	ttl   time.Duration
}

// New creates a cache backed by the given redis client
func New(rdb *redis.Client, cfg config.CacheConfig) (*Cache, error) {
	c := &Cache{
		rdb: rdb,
		ttl: cfg.TTL,
	}

	if cfg.LocalEnabled {
		bcConfig := bigcache.DefaultConfig(cfg.LocalTTL)
		bcConfig.HardMaxCacheSize = cfg.LocalSizeMB
		local, err := bigcache.New(context.Background(), bcConfig)
		if err != nil {
			return nil, err
		}
		c.local = local
	}

	return c, nil
}

// Get unmarshal the cached value for key into dest. Returns ErrCacheMiss
// when absent or unreadable.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.local != nil {
		if data, err := c.local.Get(key); err == nil {
			if json.Unmarshal(data, dest) == nil {
				monitor.ObserveCacheLookup(true)
				return nil
			}
		}
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).WithField("key", key).Warn("Cache get failed")
		}
		monitor.ObserveCacheLookup(false)
		return ErrCacheMiss
	}

	if err := json.Unmarshal(data, dest); err != nil {
		monitor.ObserveCacheLookup(false)
		return ErrCacheMiss
	}

	if c.local != nil {
		_ = c.local.Set(key, data)
	}
	monitor.ObserveCacheLookup(true)
	return nil
}

// Set store value under key with the given TTL; ttl <= 0 uses the default
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = c.ttl
	}

	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		log.WithError(err).WithField("key", key).Warn("Cache set failed")
		return err
	}

	if c.local != nil {
		_ = c.local.Set(key, data)
	}
	return nil
}

// Delete remove a single key
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c.local != nil {
		for _, key := range keys {
			_ = c.local.Delete(key)
		}
	}

	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		log.WithError(err).Warn("Cache delete failed")
		return err
	}
	return nil
}

// DeletePrefix remove every key under the given prefix. Uses SCAN so it
// stays safe against large keyspaces. The local front cannot iterate by
// prefix, so it is reset wholesale.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	if c.local != nil {
		_ = c.local.Reset()
	}

	iter := c.rdb.Scan(ctx, 0, prefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 200 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		log.WithError(err).WithField("prefix", prefix).Warn("Cache prefix scan failed")
		return err
	}
	if len(keys) > 0 {
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Increment atomically increment a counter key
func (c *Cache) Increment(ctx context.Context, key string, amount int64) (int64, error) {
	n, err := c.rdb.IncrBy(ctx, key, amount).Result()
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("Cache increment failed")
		return 0, err
	}
	return n, nil
}

// GetDel fetch and delete a counter key, returning 0 when absent
func (c *Cache) GetDel(ctx context.Context, key string) (int64, error) {
	val, err := c.rdb.GetDel(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return val, nil
}

// Keys list keys matching the pattern (SCAN-based)
func (c *Cache) Keys(ctx context.Context, pattern string) ([]string, error) {
	iter := c.rdb.Scan(ctx, 0, pattern, 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

// Health checks the cache backend
func (c *Cache) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
