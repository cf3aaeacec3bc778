package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter is a sliding-window request limiter keyed by an arbitrary string.
type Limiter interface {
	// Allow records one request for key and returns how many are left in the
	// window. A throttled request gets a *LimitError and is not recorded; any
	// other error means the backend failed.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (remaining int, err error)
	// Reset forgets every request recorded for key.
	Reset(ctx context.Context, key string) error
}

// LimitError is returned by Allow when the key is out of budget. RetryAfter
// is the time until the oldest request in the window expires.
type LimitError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit of %d exceeded, retry after %v", e.Limit, e.RetryAfter)
}

// MemoryLimiter keeps request timestamps per key in process memory. It is
// only correct for a single instance; use RedisLimiter behind a load
// balancer.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	timestamps := l.entries[key]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= limit {
		l.entries[key] = valid
		return 0, &LimitError{Limit: limit, RetryAfter: valid[0].Add(window).Sub(now)}
	}

	l.entries[key] = append(valid, now)
	return limit - len(valid) - 1, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}

// Sweep drops keys with no request inside window. Long running servers call
// it periodically so idle clients do not accumulate.
func (l *MemoryLimiter) Sweep(window time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-window)
	removed := 0
	for key, timestamps := range l.entries {
		n := len(timestamps)
		if n == 0 || !timestamps[n-1].After(cutoff) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}
