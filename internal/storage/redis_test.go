package storage

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(ctx context.Context, t *testing.T) (*redis.Client, func()) {
	t.Helper()

	defer func() {
		if r := recover(); r != nil {
			t.Skipf("failed to start redis container: %v", r)
		}
	}()

	container, err := redismodule.Run(ctx, "redis:8-alpine")
	if err != nil {
		t.Skipf("failed to start redis container: %v", err)
	}
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Skipf("failed to get redis endpoint: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: endpoint})

	return client, func() {
		if err := client.Close(); err != nil {
			t.Logf("failed to close redis client: %v", err)
		}
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	}
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("redis container test skipped in short mode")
	}
	ctx := context.Background()
	client, cleanup := setupRedis(ctx, t)
	defer cleanup()

	exerciseStore(t, NewRedisStore(client, "slotwatch-test:"))

	// values live under the prefix
	n, err := client.Exists(ctx, "slotwatch-test:"+KeyTargets, "slotwatch-test:"+KeyCounters).Result()
	if err != nil || n != 2 {
		t.Fatalf("prefixed keys = %d, %v", n, err)
	}
}
