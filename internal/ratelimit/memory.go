package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count   int64
	expires time.Time
}

// MemoryLimiter keeps counters in process. Counters are not shared between replicas.
type MemoryLimiter struct {
	mu          sync.Mutex
	maxAttempts int64
	window      time.Duration
	entries     map[string]memoryEntry
	now         func() time.Time
}

func NewMemoryLimiter(maxAttempts int, window time.Duration) *MemoryLimiter {
	limit, win := normalize(maxAttempts, window)
	return &MemoryLimiter{
		maxAttempts: limit,
		window:      win,
		entries:     make(map[string]memoryEntry),
		now:         time.Now,
	}
}

func (l *MemoryLimiter) Blocked(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.current(key)
	if !ok || entry.count < l.maxAttempts {
		return false, 0, nil
	}
	return true, entry.expires.Sub(l.now()), nil
}

func (l *MemoryLimiter) Fail(_ context.Context, key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.current(key)
	if !ok {
		entry = memoryEntry{expires: l.now().Add(l.window)}
	}
	entry.count++
	l.entries[key] = entry
	return entry.count, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}

// current returns the live entry for key, dropping it once expired. Callers hold mu.
func (l *MemoryLimiter) current(key string) (memoryEntry, bool) {
	entry, ok := l.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !l.now().Before(entry.expires) {
		delete(l.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}
