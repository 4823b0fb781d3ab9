package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"telegram-pix-manager/internal/domain/ports/repository"
)

var _ repository.RateLimiter = (*RateLimiter)(nil)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key. Idle buckets are evicted
// opportunistically every few thousand lookups.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	cleanupN uint64
	now      func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	return rl.getVisitor(key, limit, window).AllowN(rl.now(), 1), nil
}

func (rl *RateLimiter) getVisitor(key string, limit int, window time.Duration) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// evict before touching key so a stale bucket is rebuilt fresh
	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}
