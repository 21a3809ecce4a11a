package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmorozov-pr/identity-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles per-client request rates with a sliding window log
// kept in Redis. It guards the HTTP surface only; the per-phone OTP send
// limit is counted from stored credentials instead.
type RateLimiter struct {
	redis *database.Redis
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(redis *database.Redis) *RateLimiter {
	return &RateLimiter{redis: redis}
}

// Allow reports whether a request under the given key fits the limit and,
// when it does, records it in the window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	redisKey := "ratelimit:" + key

	if err := r.trimWindow(ctx, redisKey, now, window); err != nil {
		return false, err
	}

	count, err := r.redis.Client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to count window entries: %w", err)
	}
	if count >= int64(limit) {
		return false, nil
	}

	member := strconv.FormatInt(now.UnixNano(), 10)
	if err := r.redis.Client.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.Unix()),
		Member: member,
	}).Err(); err != nil {
		return false, fmt.Errorf("failed to record request: %w", err)
	}

	// Expiry failure only delays key cleanup.
	_ = r.redis.Client.Expire(ctx, redisKey, window+time.Minute).Err()

	return true, nil
}

// Remaining returns how many requests the key may still make in the
// current window.
func (r *RateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	redisKey := "ratelimit:" + key

	if err := r.trimWindow(ctx, redisKey, time.Now(), window); err != nil {
		return 0, err
	}

	count, err := r.redis.Client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count window entries: %w", err)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (r *RateLimiter) trimWindow(ctx context.Context, redisKey string, now time.Time, window time.Duration) error {
	cutoff := strconv.FormatInt(now.Add(-window).Unix(), 10)
	if err := r.redis.Client.ZRemRangeByScore(ctx, redisKey, "0", cutoff).Err(); err != nil {
		return fmt.Errorf("failed to trim window: %w", err)
	}
	return nil
}
