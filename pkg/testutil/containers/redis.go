//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer backs the locator cache tests.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine", tcredis.WithLogLevel(tcredis.LogLevelWarning))
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	fail := func(format string, err error) {
		_ = container.Terminate(ctx)
		t.Fatalf(format, err)
	}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		fail("failed to get redis connection string: %v", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		fail("failed to parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		fail("failed to ping redis: %v", err)
	}

	return &RedisContainer{Container: container, URL: url, Client: client}
}

// FlushAll drops every key so each test starts with a cold cache.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushDB(ctx).Err()
}
