package memory

import (
	"context"
	"sync"
	"time"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/storage"
)

// StateStore is an in-memory implementation of storage.StateStore.
type StateStore struct {
	mu      sync.RWMutex
	state   *domain.AgentState
	history []domain.StateKind // every kind ever set, for assertions in tests
}

// NewStateStore creates an empty state store.
func NewStateStore() *StateStore {
	return &StateStore{}
}

// SetState overwrites the snapshot.
func (s *StateStore) SetState(_ context.Context, st domain.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := st
	cp.CandidateCoins = append([]domain.Candidate(nil), st.CandidateCoins...)
	s.state = &cp
	s.history = append(s.history, st.Kind)
	return nil
}

// GetState returns the snapshot or idle.
func (s *StateStore) GetState(_ context.Context) (domain.AgentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return domain.IdleState(time.Now()), nil
	}
	return *s.state, nil
}

// Kinds returns the sequence of kinds set so far.
func (s *StateStore) Kinds() []domain.StateKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.StateKind(nil), s.history...)
}

var _ storage.StateStore = (*StateStore)(nil)
