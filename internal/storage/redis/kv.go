package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/dyagdi/PriceLess/pkg/errors"
)

// KV implements storage.KV using Redis strings.
type KV struct {
	client *redis.Client
	ttl    time.Duration
}

// NewKV creates a Redis-backed KV. A zero ttl stores records without expiry.
func NewKV(client *redis.Client, ttl time.Duration) *KV {
	return &KV{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves the value stored at key.
func (r *KV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, apperrors.Wrap(err, "redis get "+key)
	}
	return value, true, nil
}

// Set stores value at key with the configured TTL.
func (r *KV) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return apperrors.Wrap(err, "redis set "+key)
	}
	return nil
}

// Delete removes key from Redis.
func (r *KV) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return apperrors.Wrap(err, "redis del "+key)
	}
	return nil
}

// Ping checks Redis connectivity.
func (r *KV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
