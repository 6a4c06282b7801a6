package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sylo/internal/ratelimit"
)

// RedisStore implements ratelimit.Store on a shared Redis counter so limits
// hold across processes. Each key is INCRed and expires at the end of its
// fixed window.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*ratelimit.Result, error) {
	redisKey := s.prefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis rate limit incr: %w", err)
	}

	count := int(incr.Val())
	now := time.Now()

	// First request in a window (or a key left without TTL) starts the clock.
	expiry := ttl.Val()
	if count == 1 || expiry < 0 {
		if err := s.client.PExpire(ctx, redisKey, window).Err(); err != nil {
			return nil, fmt.Errorf("redis rate limit expire: %w", err)
		}
		expiry = window
	}
	resetAt := now.Add(expiry)

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &ratelimit.Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
