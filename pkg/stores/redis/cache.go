package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/theapemachine/trill-go/pkg/memory"
)

// Cache implements memory.StatsCache on top of Redis. It backs the
// best-effort stats tool; every failure here is treated as a soft
// condition by its callers.
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
}

type CacheOption func(*Cache)

func NewCache(addr string, options ...CacheOption) *Cache {
	cache := &Cache{
		client: goredis.NewClient(&goredis.Options{Addr: addr}),
	}

	for _, option := range options {
		option(cache)
	}

	return cache
}

// WithTTL sets an expiry on cached counters; zero means no expiry.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()

	if errors.Is(err, goredis.Nil) {
		return "", memory.ErrCacheMiss
	}

	if err != nil {
		return "", err
	}

	return val, nil
}

func (c *Cache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, key, value, c.ttl).Err()
}

// Ping checks the connection to the Redis server.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
