package ratelimit

import (
	"context"
	"strconv"
	"time"

	redisadapter "github.com/robertarktes/court-reservations/internal/adapters/redis"
)

// RateLimiter counts requests per key in fixed windows of period.
type RateLimiter struct {
	redis *redisadapter.Cache
	now   func() time.Time
}

func NewRateLimiter(redis *redisadapter.Cache) *RateLimiter {
	return &RateLimiter{redis: redis, now: time.Now}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) (bool, error) {
	window := rl.now().UnixNano() / int64(period)
	fullKey := "rl:" + key + ":" + strconv.FormatInt(window, 10)

	pipe := rl.redis.Client().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, period)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(rate), nil
}
