package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "erasure-relay:login-attempts"

// RedisLimiter keeps counters in redis so every replica shares them.
type RedisLimiter struct {
	client      redis.Cmdable
	maxAttempts int64
	window      time.Duration
	keyPrefix   string
}

func NewRedisLimiter(client redis.Cmdable, maxAttempts int, window time.Duration) *RedisLimiter {
	limit, win := normalize(maxAttempts, window)
	return &RedisLimiter{client: client, maxAttempts: limit, window: win, keyPrefix: defaultKeyPrefix}
}

// NewRedisLimiterFromURL connects to the redis instance named by rawURL.
func NewRedisLimiterFromURL(rawURL string, maxAttempts int, window time.Duration) (*RedisLimiter, *redis.Client, error) {
	options, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("ratelimit: parse redis url: %w", err)
	}
	client := redis.NewClient(options)
	return NewRedisLimiter(client, maxAttempts, window), client, nil
}

func (l *RedisLimiter) key(key string) string {
	return l.keyPrefix + ":" + key
}

func (l *RedisLimiter) Blocked(ctx context.Context, key string) (bool, time.Duration, error) {
	fullKey := l.key(key)
	count, err := l.client.Get(ctx, fullKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("ratelimit: read counter: %w", err)
	}
	if count < l.maxAttempts {
		return false, 0, nil
	}
	ttl, errTTL := l.client.TTL(ctx, fullKey).Result()
	if errTTL != nil {
		return true, l.window, fmt.Errorf("ratelimit: read ttl: %w", errTTL)
	}
	if ttl == -1 {
		// Counter without expiry; start a fresh window so it cannot lock forever.
		if errExpire := l.client.Expire(ctx, fullKey, l.window).Err(); errExpire != nil {
			return true, l.window, fmt.Errorf("ratelimit: set window: %w", errExpire)
		}
	}
	if ttl < 0 {
		ttl = l.window
	}
	return true, ttl, nil
}

func (l *RedisLimiter) Fail(ctx context.Context, key string) (int64, error) {
	fullKey := l.key(key)
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, fullKey, 0, l.window)
		incr = pipe.Incr(ctx, fullKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ratelimit: record failure: %w", err)
	}
	return incr.Val(), nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("ratelimit: reset counter: %w", err)
	}
	return nil
}
