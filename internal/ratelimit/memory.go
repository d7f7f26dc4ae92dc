package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter implements a sliding-window in-memory rate limiter. Each
// identity keeps the timestamps of its admitted requests inside the trailing
// window; rejected attempts are not recorded. Identities idle longer than the
// window are evicted by Sweep so the map stays bounded.
type MemoryLimiter struct {
	window      time.Duration
	maxRequests int

	mu      sync.Mutex
	windows map[string][]time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter(window time.Duration, maxRequests int) *MemoryLimiter {
	return &MemoryLimiter{
		window:      window,
		maxRequests: maxRequests,
		windows:     make(map[string][]time.Time),
		stop:        make(chan struct{}),
	}
}

// Allow checks whether the identity may issue a request at now. Timestamps
// older than now-window are pruned first; at maxRequests admitted requests
// the attempt is rejected without being recorded.
func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (Result, error) {
	if key == "" || l.maxRequests <= 0 {
		return Result{Allowed: true}, nil
	}
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.windows[key][:0]
	for _, ts := range l.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.maxRequests {
		l.windows[key] = kept
		return Result{Allowed: false, Remaining: 0, Reset: kept[0].Add(l.window)}, nil
	}

	kept = append(kept, now)
	l.windows[key] = kept
	return Result{Allowed: true, Remaining: l.maxRequests - len(kept), Reset: kept[0].Add(l.window)}, nil
}

// Sweep drops identities whose newest admitted request is older than
// now-window.
func (l *MemoryLimiter) Sweep(now time.Time) {
	cutoff := now.Add(-l.window)
	l.mu.Lock()
	for key, window := range l.windows {
		if len(window) == 0 || !window[len(window)-1].After(cutoff) {
			delete(l.windows, key)
		}
	}
	l.mu.Unlock()
}

// Len reports the number of tracked identities.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// StartSweeper launches a background eviction loop at window cadence. Stop
// terminates it.
func (l *MemoryLimiter) StartSweeper(nowFn func() time.Time) {
	if nowFn == nil {
		nowFn = time.Now
	}
	go func() {
		ticker := time.NewTicker(l.window)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep(nowFn())
			case <-l.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweeper. Safe to call more than once.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
