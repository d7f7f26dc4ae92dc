package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides per-identity rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (Result, error)
}

// Settings holds the sliding-window parameters and the optional Redis
// backend. Settings are fixed at startup.
type Settings struct {
	Window      time.Duration
	MaxRequests int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}
