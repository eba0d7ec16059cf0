package ratelimit

import (
	"context"
	"time"

	redisadapter "github.com/veloztours/booking-engine/internal/adapters/redis"
)

// RateLimiter is a fixed-window counter over redis. Fails closed when
// redis is unreachable.
type RateLimiter struct {
	store *redisadapter.Store
}

func New(store *redisadapter.Store) *RateLimiter {
	return &RateLimiter{store: store}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	fullKey := "rl:" + key

	pipe := rl.store.Client().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, period)

	if _, err := pipe.Exec(ctx); err != nil {
		return false
	}
	return incr.Val() <= int64(rate)
}
