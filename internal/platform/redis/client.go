// Package redis builds the optional Redis connection behind the locator cache.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"renewals/internal/platform/config"
)

type Client struct {
	*redis.Client
}

// New returns nil, nil when no URL is configured. Callers treat a nil client
// as "cache disabled".
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	c := &Client{Client: redis.NewClient(opts)}
	if err := c.Health(ctx); err != nil {
		_ = c.Client.Close()
		return nil, err
	}
	return c, nil
}

// Health pings within the dial timeout so /health never hangs on a dead server.
func (c *Client) Health(ctx context.Context) error {
	if timeout := c.Options().DialTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
