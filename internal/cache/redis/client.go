package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/metrics"
	"github.com/rights-monitor/backend/internal/ports"
	"github.com/rights-monitor/backend/pkg/circuitbreaker"
	"github.com/rights-monitor/backend/pkg/logger"
	"github.com/rights-monitor/backend/pkg/retry"
)

const keyPrefix = "model:"

// Client caches raw model output in redis. Cache failures are logged and
// treated as misses; after repeated failures redis is skipped for a while.
type Client struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *circuitbreaker.Breaker
}

var _ ports.ResponseCache = (*Client)(nil)

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := retry.Exponential(4, 250*time.Millisecond, 2*time.Second, logger.GetLogger())
	cfg.Operation = "redis_connect"
	err := retry.Do(ctx, cfg, func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.Duration("ttl", ttl),
	)

	return NewFromClient(client, ttl), nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(client *redis.Client, ttl time.Duration) *Client {
	return &Client{
		client: client,
		ttl:    ttl,
		breaker: circuitbreaker.New("redis", circuitbreaker.Config{
			FailureThreshold: 3,
			Cooldown:         30 * time.Second,
			Logger:           logger.GetLogger(),
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Get(ctx context.Context, key string) (string, bool) {
	var val string
	err := c.breaker.Do(func() error {
		var err error
		val, err = c.client.Get(ctx, keyPrefix+key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	})

	if err != nil {
		if !errors.Is(err, circuitbreaker.ErrOpen) {
			logger.Warn("Failed to read model cache", zap.Error(err))
		}
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		return "", false
	}
	if val == "" {
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		return "", false
	}

	metrics.CacheHits.WithLabelValues("redis").Inc()
	logger.Debug("Model cache hit", zap.String("key", key))
	return val, true
}

func (c *Client) Set(ctx context.Context, key, value string) {
	err := c.breaker.Do(func() error {
		return c.client.Set(ctx, keyPrefix+key, value, c.ttl).Err()
	})
	if err != nil {
		if !errors.Is(err, circuitbreaker.ErrOpen) {
			logger.Warn("Failed to write model cache", zap.Error(err))
		}
		return
	}
	logger.Debug("Model output cached", zap.String("key", key), zap.Duration("ttl", c.ttl))
}

// Invalidate drops every cached model output.
func (c *Client) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Model cache invalidated")
	return nil
}
