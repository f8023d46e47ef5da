// Package ratelimit counts failed admin credential attempts per client.
package ratelimit

import (
	"context"
	"time"
)

// Limiter tracks failures inside a fixed window that starts at the first failure.
type Limiter interface {
	// Blocked reports whether key exhausted its attempts and how long until it may retry.
	Blocked(ctx context.Context, key string) (bool, time.Duration, error)
	// Fail records one failure and returns the count inside the current window.
	Fail(ctx context.Context, key string) (int64, error)
	// Reset forgets the failures recorded for key.
	Reset(ctx context.Context, key string) error
}

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

func normalize(maxAttempts int, window time.Duration) (int64, time.Duration) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return int64(maxAttempts), window
}
