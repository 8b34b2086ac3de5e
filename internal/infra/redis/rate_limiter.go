package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter counts calls per key in fixed windows aligned to the clock.
// Each window has its own counter, so a lost EXPIRE never blocks a key for good.
type RateLimiter struct {
	client RedisClient
	prefix string
	now    func() time.Time
}

func NewRateLimiter(client RedisClient, prefix string) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix, now: time.Now}
}

func (r *RateLimiter) windowKey(key string, window time.Duration) string {
	bucket := r.now().UnixNano() / int64(window)
	return fmt.Sprintf("%s:%s:%d", r.prefix, key, bucket)
}

// Allow reports whether one more call under key fits into limit per window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if window <= 0 {
		window = time.Minute
	}
	k := r.windowKey(key, window)
	count, err := r.client.Incr(ctx, k)
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, k, window); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return count <= int64(limit), nil
}

// BatchSubmitKey scopes batch submissions to one device.
func BatchSubmitKey(deviceID string) string {
	return fmt.Sprintf("rate_limit:%s:batch", deviceID)
}
