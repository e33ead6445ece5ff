package cache

import (
	"context"
	"errors"
	"time"

	"github.com/canopy-network/txdash/pkg/redis"
)

// Redis keeps results in Redis so several replicas share one cache.
type Redis struct {
	client *redis.Client
}

// NewRedis uses client for storage. Keys get the client's prefix.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Name() string { return BackendRedis }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.GetBytes(ctx, key)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.SetBytes(ctx, key, value, ttl)
}

func (r *Redis) Purge(ctx context.Context) (int64, error) {
	return r.client.DeletePrefix(ctx, "")
}

func (r *Redis) Health(ctx context.Context) error {
	return r.client.Health(ctx)
}

// Close releases the Redis connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
