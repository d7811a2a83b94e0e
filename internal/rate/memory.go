package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter: misma semántica fixed-window que RedisLimiter pero local al
// proceso. No coordina entre réplicas.
type MemoryLimiter struct {
	mu     sync.Mutex
	max    int64
	window time.Duration
	counts map[string]*windowCount
}

type windowCount struct {
	start time.Time
	hits  int64
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		max:    int64(max),
		window: window,
		counts: make(map[string]*windowCount),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := time.Now()
	winStart := now.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	wc, ok := l.counts[key]
	if !ok || wc.start.Before(winStart) {
		wc = &windowCount{start: winStart}
		l.counts[key] = wc
	}
	wc.hits++

	res := Result{
		Allowed:   wc.hits <= l.max,
		Remaining: max64(l.max-wc.hits, 0),
	}
	if !res.Allowed {
		res.RetryAfter = wc.start.Add(l.window).Sub(now)
		if res.RetryAfter <= 0 {
			res.RetryAfter = time.Second
		}
	}

	// Poda oportunista de ventanas viejas.
	if len(l.counts) > 4096 {
		for k, v := range l.counts {
			if v.start.Before(winStart) {
				delete(l.counts, k)
			}
		}
	}
	return res, nil
}

// NopLimiter permite todo. Se usa cuando el rate limiting está deshabilitado.
type NopLimiter struct{}

func (NopLimiter) Allow(context.Context, string) (Result, error) {
	return Result{Allowed: true, Remaining: 1 << 30}, nil
}
