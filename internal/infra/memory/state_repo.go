// Package memory holds process-local fallbacks for the Redis-backed ports.
// A worker owns its bot's conversations, so in-process state is enough when
// no Redis is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/ports/repository"
)

var _ repository.StateRepository = (*StateRepo)(nil)

type entry struct {
	state   repository.ConversationState
	expires time.Time
}

// sweepEvery is how many writes pass between sweeps of expired entries, so
// conversations that are never read again do not pile up.
const sweepEvery = 256

type StateRepo struct {
	mu     sync.Mutex
	states map[string]entry
	writes int
	ttl    time.Duration
	now    func() time.Time
}

func NewStateRepo(ttl time.Duration) *StateRepo {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &StateRepo{states: make(map[string]entry), ttl: ttl, now: time.Now}
}

func key(scope string, tgID int64) string { return fmt.Sprintf("%s:%d", scope, tgID) }

func copyState(st repository.ConversationState) repository.ConversationState {
	if st.Data != nil {
		data := make(map[string]string, len(st.Data))
		for k, v := range st.Data {
			data[k] = v
		}
		st.Data = data
	}
	return st
}

func (s *StateRepo) SetState(_ context.Context, scope string, tgID int64, state *repository.ConversationState) error {
	if state == nil {
		return fmt.Errorf("%w: nil conversation state", domain.ErrInvalidArgument)
	}
	cp := copyState(*state)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = now.UTC()
	}
	s.states[key(scope, tgID)] = entry{state: cp, expires: now.Add(s.ttl)}
	s.writes++
	if s.writes%sweepEvery == 0 {
		s.sweep(now)
	}
	return nil
}

func (s *StateRepo) GetState(_ context.Context, scope string, tgID int64) (*repository.ConversationState, error) {
	k := key(scope, tgID)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.states[k]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !s.now().Before(e.expires) {
		delete(s.states, k)
		return nil, domain.ErrNotFound
	}
	st := copyState(e.state)
	return &st, nil
}

func (s *StateRepo) ClearState(_ context.Context, scope string, tgID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key(scope, tgID))
	return nil
}

// sweep drops expired entries. Callers hold mu.
func (s *StateRepo) sweep(now time.Time) {
	for k, e := range s.states {
		if !now.Before(e.expires) {
			delete(s.states, k)
		}
	}
}
