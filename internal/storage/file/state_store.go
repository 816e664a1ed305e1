package file

import (
	"context"
	"path/filepath"
	"time"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/storage"
)

// StateStore keeps the agent snapshot in dir/state.json.
type StateStore struct {
	path string
}

// NewStateStore creates a state store.
func NewStateStore(dir string) *StateStore {
	return &StateStore{path: filepath.Join(dir, StateFile)}
}

// SetState overwrites the snapshot.
func (s *StateStore) SetState(_ context.Context, st domain.AgentState) error {
	return writeJSON(s.path, st)
}

// GetState reads the snapshot; missing or corrupt files read as idle.
func (s *StateStore) GetState(_ context.Context) (domain.AgentState, error) {
	var st domain.AgentState
	ok, err := readJSON(s.path, &st)
	if err != nil || !ok || st.Kind == "" {
		return domain.IdleState(time.Now()), nil
	}
	return st, nil
}

var _ storage.StateStore = (*StateStore)(nil)
