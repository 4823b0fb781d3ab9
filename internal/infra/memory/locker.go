package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/ports/repository"
)

var _ repository.Locker = (*Locker)(nil)

type held struct {
	token   string
	expires time.Time
}

// Locker only excludes callers inside one process.
type Locker struct {
	mu    sync.Mutex
	locks map[string]held
	now   func() time.Time
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]held), now: time.Now}
}

func (l *Locker) TryLock(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if h, ok := l.locks[key]; ok && now.Before(h.expires) {
		return "", domain.ErrLockHeld
	}
	tok := uuid.NewString()
	l.locks[key] = held{token: tok, expires: now.Add(ttl)}
	return tok, nil
}

func (l *Locker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.locks[key]; ok && h.token == token {
		delete(l.locks, key)
	}
	return nil
}
