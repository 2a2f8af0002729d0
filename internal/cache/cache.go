package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/codec"
	"github.com/eko/gocache/lib/v4/store"
	go_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	"github.com/nashr-app/nashr/internal/config"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// PrefixedCache wraps a cache.Cache and adds a prefix to all keys.
// Values are stored as JSON strings, the type the redis store hands back on Get.
// Every key is tagged with the prefix so Clear never touches keys of other applications
// sharing the same redis database.
type PrefixedCache[T any] struct {
	cache     *cache.Cache[string]
	cacheType config.CacheType
	prefix    string
}

// NewPrefixedCache creates a new prefixed cache wrapper.
func NewPrefixedCache[T any](cache *cache.Cache[string], cacheType config.CacheType, prefix string) *PrefixedCache[T] {
	return &PrefixedCache[T]{
		cache:     cache,
		cacheType: cacheType,
		prefix:    prefix,
	}
}

func (p *PrefixedCache[T]) key(key any) string {
	return p.prefix + fmt.Sprintf("%v", key)
}

// Get retrieves a value from the cache with the prefixed key.
func (p *PrefixedCache[T]) Get(ctx context.Context, key any) (T, error) {
	data, err := p.cache.Get(ctx, p.key(key))
	if err != nil {
		return *new(T), err
	}
	var result T
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return *new(T), err
	}
	return result, nil
}

// Set stores a value in the cache with the prefixed key.
func (p *PrefixedCache[T]) Set(ctx context.Context, key any, object T, options ...store.Option) error {
	data, err := json.Marshal(object)
	if err != nil {
		return err
	}
	options = append(options, store.WithTags([]string{p.prefix}))
	return p.cache.Set(ctx, p.key(key), string(data), options...)
}

// Delete removes a value from the cache with the prefixed key.
func (p *PrefixedCache[T]) Delete(ctx context.Context, key any) error {
	return p.cache.Delete(ctx, p.key(key))
}

// Clear removes all values written through this cache.
func (p *PrefixedCache[T]) Clear(ctx context.Context) error {
	return p.cache.Invalidate(ctx, store.WithInvalidateTags([]string{p.prefix}))
}

// GetType returns the cache type.
func (p *PrefixedCache[T]) GetType() config.CacheType {
	return p.cacheType
}

// GetStats returns the cache statistics.
func (p *PrefixedCache[T]) GetStats() *codec.Stats {
	return p.cache.GetCodec().GetStats()
}

// GetOrLoad returns the cached value or calls load and caches its result with the given TTL.
// Cache failures are logged and never fail the call.
func (p *PrefixedCache[T]) GetOrLoad(ctx context.Context, key any, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if cached, err := p.Get(ctx, key); err == nil {
		return cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	var opts []store.Option
	if ttl > 0 {
		opts = append(opts, store.WithExpiration(ttl))
	}
	if err := p.Set(ctx, key, value, opts...); err != nil {
		log.Warn("failed to cache value", "key", p.key(key), "error", err)
	}
	return value, nil
}

func newCacheInstanceByType(cfg *config.CacheConfig) *cache.Cache[string] {
	switch cfg.Type {
	case config.CacheTypeRedis:
		return newRedisCache[string](cfg)
	default:
		return newMemoryCache[string]()
	}
}

func newMemoryCache[T any]() *cache.Cache[T] {
	// items without an explicit ttl never expire
	gocacheClient := gocache.New(gocache.NoExpiration, 10*time.Minute)
	gocacheStore := go_store.NewGoCache(gocacheClient)
	return cache.New[T](gocacheStore)
}

func newRedisCache[T any](cfg *config.CacheConfig) *cache.Cache[T] {
	redisStore := redis_store.NewRedis(newRedisClient(cfg.RedisURL))
	return cache.New[T](redisStore)
}

// newRedisClient accepts either a redis:// URL or a plain host:port address.
func newRedisClient(url string) *redis.Client {
	if strings.Contains(url, "://") {
		opts, err := redis.ParseURL(url)
		if err == nil {
			return redis.NewClient(opts)
		}
		log.Warn("failed to parse redis url, using it as address", "error", err)
	}
	return redis.NewClient(&redis.Options{Addr: url})
}
