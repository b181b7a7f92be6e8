package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache stores predicted covers per model version and timestamp
type Cache interface {
	Get(ctx context.Context, key string) (int, bool, error)
	Set(ctx context.Context, key string, covers int) error
}

// CacheKey identifies a prediction for one model version at one hour
func CacheKey(version string, ts time.Time) string {
	return fmt.Sprintf("covers:%s:%s", version, ts.Format("2006-01-02T15"))
}

// RedisCache is a Cache backed by Redis string keys with a TTL
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing client
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// ConnectRedis opens a client and checks it answers PING
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (int, bool, error) {
	covers, err := c.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return covers, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, covers int) error {
	return c.client.Set(ctx, key, covers, c.ttl).Err()
}
