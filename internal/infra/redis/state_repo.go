package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/ports/repository"
)

var _ repository.StateRepository = (*StateRepo)(nil)

// StateRepo keeps the worker's per-user conversation (pending gateway token,
// pending PIX value) in Redis. Keys expire after ttl of inactivity.
type StateRepo struct {
	client RedisClient
	keys   Keyspace
	ttl    time.Duration
	now    func() time.Time
}

func NewStateRepo(client RedisClient, keys Keyspace, ttl time.Duration) *StateRepo {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &StateRepo{client: client, keys: keys, ttl: ttl, now: time.Now}
}

func (s *StateRepo) SetState(ctx context.Context, scope string, tgID int64, state *repository.ConversationState) error {
	if state == nil {
		return fmt.Errorf("%w: nil conversation state", domain.ErrInvalidArgument)
	}
	state.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.keys.conversation(scope, tgID), data, s.ttl)
}

func (s *StateRepo) GetState(ctx context.Context, scope string, tgID int64) (*repository.ConversationState, error) {
	data, err := s.client.Get(ctx, s.keys.conversation(scope, tgID))
	switch {
	case errors.Is(err, redis.Nil):
		return nil, domain.ErrNotFound
	case err != nil:
		return nil, err
	}
	var state repository.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		// A value we cannot decode is treated as no conversation.
		_ = s.client.Del(ctx, s.keys.conversation(scope, tgID))
		return nil, domain.ErrNotFound
	}
	return &state, nil
}

func (s *StateRepo) ClearState(ctx context.Context, scope string, tgID int64) error {
	return s.client.Del(ctx, s.keys.conversation(scope, tgID))
}
