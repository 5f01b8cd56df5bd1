package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/galia-project/iiifcore/internal/config"
)

// Client wraps go-redis with the logging and error-wrapping conventions
// used by the variant-cache and info-cache Redis backends.
type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	client := &Client{rdb: rdb, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Debug("redis client connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return client, nil
}

func (c *Client) Ping(ctx context.Context) error {
	result, err := c.rdb.Ping(ctx).Result()
	if err != nil {
		c.logger.Error("redis ping failed", zap.Error(err))
		return err
	}
	if result != "PONG" {
		return fmt.Errorf("unexpected ping response: %s", result)
	}
	return nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	start := time.Now().UTC()
	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	c.logger.Debug("redis health check passed", zap.Duration("duration", time.Since(start)))
	return nil
}

// Get returns the value at key, or ("", nil) on a cache miss.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	result, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		c.logger.Error("redis GET failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return result, nil
}

// GetBytes is Get for binary variant payloads.
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, error) {
	result, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		c.logger.Error("redis GET failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return result, nil
}

func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, expiration).Err(); err != nil {
		c.logger.Error("redis SET failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Error("redis DEL failed", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		c.logger.Error("redis EXISTS failed", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return result > 0, nil
}

// Keys returns every key matching pattern, used by purge(id) to find all
// variant-cache entries belonging to an identifier.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	result, err := c.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		c.logger.Error("redis KEYS failed", zap.String("pattern", pattern), zap.Error(err))
		return nil, fmt.Errorf("redis keys failed: %w", err)
	}
	return result, nil
}

func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	result, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		c.logger.Error("redis TTL failed", zap.String("key", key), zap.Error(err))
		return 0, fmt.Errorf("redis ttl failed: %w", err)
	}
	return result, nil
}

func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Close(); err != nil {
		c.logger.Error("failed to close redis client", zap.Error(err))
		return err
	}
	c.logger.Debug("redis client closed")
	return nil
}

func (c *Client) GetClient() *redis.Client {
	return c.rdb
}
