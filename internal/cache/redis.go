package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bloopsocial/bloop/internal/common/config"
	"github.com/bloopsocial/bloop/internal/realtime"
	"github.com/redis/go-redis/v9"
)

// RedisCache keeps unread counts in Redis
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ realtime.UnreadCache = (*RedisCache)(nil)

// NewRedisCache creates a new Redis-backed cache
func NewRedisCache(cfg config.CacheRedisConfig, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "bloop"
	}
	return &RedisCache{
		client: client,
		prefix: prefix + ":unread:",
		ttl:    ttl,
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, userID string) (int, bool, error) {
	n, err := c.client.Get(ctx, c.prefix+userID).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return n, true, nil
}

func (c *RedisCache) Set(ctx context.Context, userID string, n int) error {
	return c.client.Set(ctx, c.prefix+userID, n, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, c.prefix+userID).Err()
}

// Close closes the underlying client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
