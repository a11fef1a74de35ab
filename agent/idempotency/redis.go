package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps dedup keys in a Redis server reachable over RESP.
type RedisCache struct {
	client    redis.Cmdable
	keyPrefix string
}

var _ WindowCache = (*RedisCache)(nil)

func NewRedisCache(client redis.Cmdable, keyPrefix string) (*RedisCache, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisCache{client: client, keyPrefix: prefix}, nil
}

// NewRedisCacheFromURL parses a redis:// URL into a client.
func NewRedisCacheFromURL(rawURL, keyPrefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisCache(redis.NewClient(opts), keyPrefix)
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	if strings.TrimSpace(key) == "" {
		return "", false, ErrInvalidKey
	}
	id, err := c.client.Get(ctx, c.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return id, id != "", nil
}

func (c *RedisCache) Set(ctx context.Context, key, orderID string, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, orderID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
