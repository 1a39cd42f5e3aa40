// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"brokerage-insights/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient backs the caller-id directory. The pipeline only issues HGET
// against one hash, so the pool stays small and reads are bounded by the
// identity lookup timeout.
type RedisClient struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig, lookupTimeout time.Duration) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	if lookupTimeout <= 0 {
		lookupTimeout = 3 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  lookupTimeout,
		ReadTimeout:  lookupTimeout,
		WriteTimeout: lookupTimeout,
		PoolSize:     4,
		MinIdleConns: 1,
	})
	return &RedisClient{Client: rdb}, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// CallerIDCount reports how many caller ids the directory hash holds.
// Zero means every caller id lookup falls through to the static table.
func (c *RedisClient) CallerIDCount(ctx context.Context, key string) (int64, error) {
	n, err := c.Client.HLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hlen %s: %w", key, err)
	}
	return n, nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
