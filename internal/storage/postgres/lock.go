package postgres

import (
	"context"
	"fmt"
	"time"

	"lobbi-trader/internal/storage"
)

// Lock is a TTL row lock in cycle_locks. Acquire is a single conditional upsert,
// so two racing processes cannot both take a live lock.
type Lock struct {
	pool  *Pool
	name  string
	owner string
	ttl   time.Duration
	now   func() time.Time
}

// NewLock creates a lock for the named slot.
func NewLock(pool *Pool, name, owner string, ttl time.Duration) *Lock {
	return &Lock{pool: pool, name: name, owner: owner, ttl: ttl, now: time.Now}
}

// WithClock overrides the time source.
func (l *Lock) WithClock(now func() time.Time) *Lock {
	l.now = now
	return l
}

var _ storage.Lock = (*Lock)(nil)

// TryAcquire takes the slot if free, expired, or already ours.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	now := l.now().UTC()
	tag, err := l.pool.Exec(ctx, `
		INSERT INTO cycle_locks (name, owner, acquired_at) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET owner = EXCLUDED.owner, acquired_at = EXCLUDED.acquired_at
		WHERE cycle_locks.owner = EXCLUDED.owner OR cycle_locks.acquired_at < $4
	`, l.name, l.owner, now, now.Add(-l.ttl))
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release deletes the row if held by this owner.
func (l *Lock) Release(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, `DELETE FROM cycle_locks WHERE name = $1 AND owner = $2`, l.name, l.owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
