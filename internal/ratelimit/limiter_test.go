package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func exerciseLimiter(t *testing.T, l Limiter, expire func(time.Duration)) {
	t.Helper()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		blocked, _, err := l.Blocked(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("blocked: %v", err)
		}
		if blocked {
			t.Fatalf("attempt %d should not be blocked", i)
		}
		count, err := l.Fail(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("fail: %v", err)
		}
		if count != int64(i) {
			t.Fatalf("expected count %d, got %d", i, count)
		}
	}

	blocked, retry, err := l.Blocked(ctx, "1.2.3.4")
	if err != nil || !blocked {
		t.Fatalf("expected blocked after max attempts, got %v %v", blocked, err)
	}
	if retry <= 0 || retry > time.Minute {
		t.Fatalf("unexpected retry window %v", retry)
	}
	if other, _, _ := l.Blocked(ctx, "5.6.7.8"); other {
		t.Fatalf("other clients must not be blocked")
	}

	expire(time.Minute + time.Second)
	if blocked, _, _ = l.Blocked(ctx, "1.2.3.4"); blocked {
		t.Fatalf("expected counter to expire")
	}

	if _, err = l.Fail(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err = l.Reset(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if count, _ := l.Fail(ctx, "1.2.3.4"); count != 1 {
		t.Fatalf("expected fresh counter after reset, got %d", count)
	}
}

func TestMemoryLimiter(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := NewMemoryLimiter(3, time.Minute)
	l.now = func() time.Time { return now }
	exerciseLimiter(t, l, func(d time.Duration) { now = now.Add(d) })
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	exerciseLimiter(t, NewRedisLimiter(client, 3, time.Minute), mr.FastForward)
}

func TestNewRedisLimiterFromURL(t *testing.T) {
	if _, _, err := NewRedisLimiterFromURL("not a url", 3, time.Minute); err == nil {
		t.Fatalf("expected parse error")
	}
	l, client, err := NewRedisLimiterFromURL("redis://localhost:6379/0", 0, 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer func() { _ = client.Close() }()
	if l.maxAttempts != DefaultMaxAttempts || l.window != DefaultWindow {
		t.Fatalf("expected defaults, got %d %v", l.maxAttempts, l.window)
	}
}

func TestRedisLimiterWindowAlwaysSet(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedisLimiter(client, 3, time.Minute)
	ctx := context.Background()

	if count, err := l.Fail(ctx, "1.2.3.4"); err != nil || count != 1 {
		t.Fatalf("fail: %d %v", count, err)
	}
	if ttl := mr.TTL(l.key("1.2.3.4")); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected window ttl on first failure, got %v", ttl)
	}
	if count, _ := l.Fail(ctx, "1.2.3.4"); count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if ttl := mr.TTL(l.key("1.2.3.4")); ttl <= 0 {
		t.Fatalf("expected ttl kept after increment, got %v", ttl)
	}

	// A saturated counter without expiry gets a window on the next check.
	if err := mr.Set(l.key("9.9.9.9"), "5"); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	blocked, retry, err := l.Blocked(ctx, "9.9.9.9")
	if err != nil || !blocked || retry != time.Minute {
		t.Fatalf("expected blocked with full window, got %v %v %v", blocked, retry, err)
	}
	if ttl := mr.TTL(l.key("9.9.9.9")); ttl <= 0 {
		t.Fatalf("expected ttl healed, got %v", ttl)
	}
	mr.FastForward(time.Minute + time.Second)
	if blocked, _, _ = l.Blocked(ctx, "9.9.9.9"); blocked {
		t.Fatalf("expected healed counter to expire")
	}
}
