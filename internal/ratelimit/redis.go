package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisWindowScript implements the sliding window as a sorted set of admitted
// request timestamps: prune, count, reject at the limit, otherwise record.
// Keys self-clean via PEXPIRE so idle identities cost nothing.
var redisWindowScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], 0, ARGV[1])
local count = redis.call("ZCARD", KEYS[1])
if count >= tonumber(ARGV[2]) then
  return -1
end
redis.call("ZADD", KEYS[1], ARGV[3], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return count + 1
`)

// RedisLimiter implements a sliding-window rate limiter backed by Redis, for
// deployments running more than one proxy process.
type RedisLimiter struct {
	client      *redis.Client
	prefix      string
	window      time.Duration
	maxRequests int
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string, window time.Duration, maxRequests int) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		prefix:      strings.TrimSpace(prefix),
		window:      window,
		maxRequests: maxRequests,
	}
}

// Allow checks whether the identity may issue a request at now.
func (l *RedisLimiter) Allow(ctx context.Context, key string, now time.Time) (Result, error) {
	if key == "" || l == nil || l.client == nil || l.maxRequests <= 0 {
		return Result{Allowed: true}, nil
	}
	nowMS := now.UnixMilli()
	cutoff := strconv.FormatInt(nowMS-l.window.Milliseconds(), 10)
	score := strconv.FormatInt(nowMS, 10)
	member := strconv.FormatInt(now.UnixNano(), 10)
	ttl := strconv.FormatInt(l.window.Milliseconds(), 10)

	res, errEval := redisWindowScript.Run(ctx, l.client, []string{l.buildKey(key)}, cutoff, l.maxRequests, score, member, ttl).Result()
	if errEval != nil {
		return Result{}, errEval
	}
	count, ok := res.(int64)
	if !ok {
		return Result{}, errors.New("rate limit redis: unexpected response type")
	}
	reset := now.Add(l.window)
	if count < 0 {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	remaining := l.maxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining, Reset: reset}, nil
}

func (l *RedisLimiter) buildKey(key string) string {
	if l.prefix == "" {
		return key
	}
	return l.prefix + ":" + key
}
