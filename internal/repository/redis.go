package repository

import (
	"context"
	"fmt"
	"time"

	"agendo/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisSharedState coordinates rate counters and webhook dedup marks
// across API instances.
type RedisSharedState struct {
	client *redis.Client
}

// NewRedisClient builds a Redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisSharedState(client *redis.Client) *RedisSharedState {
	return &RedisSharedState{client: client}
}

// CheckRateLimit counts a request against the key's window and reports
// whether it is still within limit.
func (r *RedisSharedState) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	redisKey := "rate_limit:" + key
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, redisKey, window)
	}

	return count <= int64(limit), nil
}

// MarkProcessed records a notification ID and reports whether this
// call was the first to see it. SET NX makes the mark atomic, so a
// webhook retried by the gateway is handled once.
func (r *RedisSharedState) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	first, err := r.client.SetNX(ctx, "webhook:"+id, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark notification: %w", err)
	}
	return first, nil
}

// ClearProcessed drops a dedup mark so the gateway's next retry of the
// notification is processed again.
func (r *RedisSharedState) ClearProcessed(ctx context.Context, id string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, "webhook:"+id).Err(); err != nil {
		return fmt.Errorf("failed to clear notification mark: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
