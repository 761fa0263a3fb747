package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore wraps a redis client shared by the rate limiter, the action
// idempotency keys and notification pub/sub.
type RedisStore struct {
	Client *redis.Client
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(ctx context.Context, addr string) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
	}

	// Add OpenTelemetry instrumentation to Redis client
	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// NewRedisStore wraps an existing client, typically one pointed at miniredis.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client}
}

// IncrementWindow increments the counter at key and sets a TTL of window on
// the first hit. It returns the current count and the remaining TTL.
func (r *RedisStore) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	val, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if val == 1 {
		if err := r.Client.Expire(ctx, key, window).Err(); err != nil {
			return val, window, err
		}
		return val, window, nil
	}
	ttl, err := r.Client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		// a missing expiry means the first writer died between INCR and EXPIRE
		if err := r.Client.Expire(ctx, key, window).Err(); err != nil {
			zap.L().Warn("redis expire repair failed", zap.String("key", key), zap.Error(err))
		}
		ttl = window
	}
	return val, ttl, nil
}

// ClaimKey sets key to value only if it does not exist yet. It reports
// whether this call created the key.
func (r *RedisStore) ClaimKey(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.Client.SetNX(ctx, key, value, ttl).Result()
}

// SetKey overwrites key with value and ttl.
func (r *RedisStore) SetKey(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.Client.Set(ctx, key, value, ttl).Err()
}

// GetKey returns the value at key, or "" when it does not exist.
func (r *RedisStore) GetKey(ctx context.Context, key string) (string, error) {
	val, err := r.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// DeleteKey removes key.
func (r *RedisStore) DeleteKey(ctx context.Context, key string) error {
	return r.Client.Del(ctx, key).Err()
}

// Publish sends payload on a pub/sub channel.
func (r *RedisStore) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.Client.Publish(ctx, channel, payload).Err()
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
