package locator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "locator:url:"

// Cached stores resolved base URLs in Redis for ttl. Redis failures degrade to
// resolving through next directly.
type Cached struct {
	next   Resolver
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

func NewCached(next Resolver, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *Cached) Resolve(ctx context.Context, serviceName string) (string, error) {
	key := cacheKeyPrefix + serviceName
	if c.client != nil {
		url, err := c.client.Get(ctx, key).Result()
		switch {
		case err == nil && url != "":
			return url, nil
		case err != nil && !errors.Is(err, redis.Nil):
			c.logger.WarnContext(ctx, "locator cache read failed", "service", serviceName, "error", err)
		}
	}

	v, err, _ := c.group.Do(serviceName, func() (any, error) {
		return c.next.Resolve(ctx, serviceName)
	})
	if err != nil {
		return "", err
	}
	url := v.(string)

	if c.client != nil {
		if err := c.client.Set(ctx, key, url, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "locator cache write failed", "service", serviceName, "error", err)
		}
	}
	return url, nil
}

// Invalidate drops a cached entry, typically after the instance stopped answering.
func (c *Cached) Invalidate(ctx context.Context, serviceName string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKeyPrefix+serviceName).Err(); err != nil {
		c.logger.WarnContext(ctx, "locator cache invalidate failed", "service", serviceName, "error", err)
	}
}
