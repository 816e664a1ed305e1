package memory

import (
	"context"
	"sync"
	"time"

	"lobbi-trader/internal/storage"
)

// Lock is an in-memory TTL lock for single-process deployments and tests.
// Locks from one NewLockGroup contend with each other.
type Lock struct {
	state *lockState
	owner string
	ttl   time.Duration
	now   func() time.Time
}

type lockState struct {
	mu         sync.Mutex
	owner      string
	acquiredAt time.Time
}

// NewLock creates a standalone lock.
func NewLock(owner string, ttl time.Duration, now func() time.Time) *Lock {
	return newSharedLock(&lockState{}, owner, ttl, now)
}

// NewLockGroup returns a constructor for locks contending on one shared slot.
func NewLockGroup(ttl time.Duration, now func() time.Time) func(owner string) *Lock {
	st := &lockState{}
	return func(owner string) *Lock {
		return newSharedLock(st, owner, ttl, now)
	}
}

// newSharedLock creates a lock over an existing slot.
func newSharedLock(st *lockState, owner string, ttl time.Duration, now func() time.Time) *Lock {
	if now == nil {
		now = time.Now
	}
	return &Lock{state: st, owner: owner, ttl: ttl, now: now}
}

// TryAcquire takes the slot if free, expired, or already ours.
func (l *Lock) TryAcquire(_ context.Context) (bool, error) {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	now := l.now()
	if l.state.owner != "" && l.state.owner != l.owner && now.Sub(l.state.acquiredAt) < l.ttl {
		return false, nil
	}
	l.state.owner = l.owner
	l.state.acquiredAt = now
	return true, nil
}

// Release frees the slot if held by this owner.
func (l *Lock) Release(_ context.Context) error {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	if l.state.owner == l.owner {
		l.state.owner = ""
	}
	return nil
}

var _ storage.Lock = (*Lock)(nil)
