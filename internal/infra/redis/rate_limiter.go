package redis

import (
	"context"
	"time"

	"telegram-pix-manager/internal/domain/ports/repository"
)

var _ repository.RateLimiter = (*RateLimiter)(nil)

// RateLimiter is a fixed-window counter shared by every worker using the
// same Redis, so a user cannot dodge the limit by hitting another process.
type RateLimiter struct {
	client RedisClient
	keys   Keyspace
}

func NewRateLimiter(client RedisClient, keys Keyspace) *RateLimiter {
	return &RateLimiter{client: client, keys: keys}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	n, err := r.client.HitWindow(ctx, r.keys.rate(key), window)
	if err != nil {
		return false, err
	}
	return n <= int64(limit), nil
}
