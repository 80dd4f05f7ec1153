// Package ratelimit provides a fixed-window request limiter for the auth
// routes. The window state lives in Redis when one is configured, so limits
// hold across restarts; otherwise an in-process fallback is used.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter counts requests per key in fixed windows using INCR with a
// window-scoped key and a matching expiry.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowStart := time.Now().Truncate(l.window).Unix()
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, key, windowStart)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		// First hit in this window sets the expiry; stale windows clean
		// themselves up.
		if err := l.client.Expire(ctx, redisKey, l.window+time.Second).Err(); err != nil {
			return false, err
		}
	}

	return count <= int64(l.limit), nil
}

// MemoryLimiter is the in-process fallback with the same fixed-window
// semantics. State is lost on restart.
type MemoryLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	start  time.Time
	limit  int
	window time.Duration
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		counts: make(map[string]int),
		start:  time.Now(),
		limit:  limit,
		window: window,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.start) >= l.window {
		l.counts = make(map[string]int)
		l.start = now
	}

	l.counts[key]++
	return l.counts[key] <= l.limit, nil
}
