package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisBackend struct {
	client *redis.Client
	prefix string
	owned  bool
}

func openRedis(ctx context.Context, cfg Config) (backend, error) {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping %s: %w", addr, err)
	}
	b := newRedisBackend(client, cfg.Redis.Prefix)
	b.owned = true
	return b, nil
}

// NewRedisStore wraps an existing client. The caller keeps ownership of it.
func NewRedisStore(client *redis.Client, prefix string) Store {
	return newStore(newRedisBackend(client, prefix), noplog)
}

func newRedisBackend(client *redis.Client, prefix string) *redisBackend {
	return &redisBackend{client: client, prefix: prefix}
}

func (r *redisBackend) name() string { return "redis" }

func (r *redisBackend) get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// put uses a plain SET, which replaces the value atomically.
func (r *redisBackend) put(ctx context.Context, key string, val []byte) error {
	return r.client.Set(ctx, r.prefix+key, val, 0).Err()
}

func (r *redisBackend) close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
