package repository

import (
	"context"
	"time"
)

// ConversationState holds the user's progress in any multi-step conversation.
type ConversationState struct {
	Step      string            `json:"step"`
	Data      map[string]string `json:"data,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// StateRepository is the port for managing any user's conversational state.
// Keys are scoped per bot so one backend can serve every worker.
type StateRepository interface {
	SetState(ctx context.Context, scope string, tgID int64, state *ConversationState) error
	// GetState returns ErrNotFound when no state is stored.
	GetState(ctx context.Context, scope string, tgID int64) (*ConversationState, error)
	ClearState(ctx context.Context, scope string, tgID int64) error
}

// RateLimiter admits at most limit events per window for a key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Locker guards a short critical section shared by every process.
type Locker interface {
	// TryLock returns domain.ErrLockHeld when another holder owns key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
