package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/storage"
)

// StateStore keeps the agent snapshot in the single-row agent_state table.
type StateStore struct {
	pool *Pool
}

// NewStateStore creates a state store.
func NewStateStore(pool *Pool) *StateStore {
	return &StateStore{pool: pool}
}

var _ storage.StateStore = (*StateStore)(nil)

// SetState upserts the snapshot.
func (s *StateStore) SetState(ctx context.Context, st domain.AgentState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO agent_state (id, state, updated_at) VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()
	`, data)
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

// GetState returns the snapshot, or idle if none or undecodable.
func (s *StateStore) GetState(ctx context.Context) (domain.AgentState, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM agent_state WHERE id = 1`).Scan(&data)
	if isNotFoundError(err) {
		return domain.IdleState(time.Now()), nil
	}
	if err != nil {
		return domain.AgentState{}, fmt.Errorf("query state: %w", err)
	}

	var st domain.AgentState
	if err := json.Unmarshal(data, &st); err != nil || st.Kind == "" {
		return domain.IdleState(time.Now()), nil
	}
	return st, nil
}
