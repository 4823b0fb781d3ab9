// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/ports/repository"
)

var _ repository.Locker = (*RedisLocker)(nil)

// RedisLocker serialises registrations across the registration service and
// any worker sharing the store. Holders are identified by a random token so
// a lock that expired and was taken over is never released by its old owner.
type RedisLocker struct {
	client RedisClient
	keys   Keyspace

	attempts int
	backoff  time.Duration
}

func NewLocker(c RedisClient, keys Keyspace) *RedisLocker {
	return &RedisLocker{client: c, keys: keys, attempts: 5, backoff: 50 * time.Millisecond}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	holder := uuid.NewString()
	for i := 0; i < l.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		ok, err := l.client.SetNX(ctx, l.keys.lock(key), holder, ttl)
		if err != nil {
			return "", err
		}
		if ok {
			return holder, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.backoff):
		}
	}
	return "", domain.ErrLockHeld
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	return l.client.DelIfEqual(ctx, l.keys.lock(key), token)
}
