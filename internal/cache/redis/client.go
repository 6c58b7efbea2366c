package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/truthlens/backend/pkg/logger"
)

const keyPrefix = "truthlens:"

type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(ctx context.Context, host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.Duration("ttl", ttl),
	)

	return &Client{client: client, ttl: ttl}, nil
}

// Wrap builds a Client over an existing connection.
func Wrap(client *redis.Client, ttl time.Duration) *Client {
	return &Client{client: client, ttl: ttl}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetJSON loads the value stored under kind:fingerprint into v. It reports
// false without error on a miss.
func (c *Client) GetJSON(ctx context.Context, kind, fingerprint string, v interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key(kind, fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s cache: %w", kind, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s cache: %w", kind, err)
	}

	logger.Debug("Cache hit", zap.String("kind", kind), zap.String("fingerprint", fingerprint))
	return true, nil
}

func (c *Client) SetJSON(ctx context.Context, kind, fingerprint string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s cache: %w", kind, err)
	}

	if err := c.client.Set(ctx, key(kind, fingerprint), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s cache: %w", kind, err)
	}

	logger.Debug("Result cached", zap.String("kind", kind), zap.Duration("ttl", c.ttl))
	return nil
}

// Invalidate drops every cached entry of the given kind.
func (c *Client) Invalidate(ctx context.Context, kind string) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+kind+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Cache invalidated", zap.String("kind", kind))
	return nil
}

func key(kind, fingerprint string) string {
	return keyPrefix + kind + ":" + fingerprint
}
