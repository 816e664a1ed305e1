package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lobbi-trader/internal/storage"
)

// DefaultLockTTL bounds how long a marker is honored before it is treated as abandoned.
const DefaultLockTTL = 15 * time.Minute

// lockMarker is the content of the lock file.
type lockMarker struct {
	Owner      string `json:"owner"`
	PID        int    `json:"pid"`
	AcquiredAt int64  `json:"acquiredAt"` // unix ms
}

// Lock is a create-if-absent marker file with TTL reclaim.
type Lock struct {
	path  string
	owner string
	ttl   time.Duration
	now   func() time.Time
}

// NewLock creates a lock at dir/lobbi.lock.
func NewLock(dir, owner string, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Lock{
		path:  filepath.Join(dir, LockFile),
		owner: owner,
		ttl:   ttl,
		now:   time.Now,
	}
}

// WithClock overrides the time source.
func (l *Lock) WithClock(now func() time.Time) *Lock {
	l.now = now
	return l
}

// TryAcquire creates the marker. An expired or unreadable marker is reclaimed.
func (l *Lock) TryAcquire(_ context.Context) (bool, error) {
	ok, err := l.create()
	if err != nil || ok {
		return ok, err
	}

	m, err := l.read()
	if err == nil && m.Owner != l.owner && l.now().Sub(time.UnixMilli(m.AcquiredAt)) < l.ttl {
		return false, nil
	}

	// Expired, corrupt, or our own marker.
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("remove stale lock: %w", err)
	}
	return l.create()
}

// Release removes the marker if this owner holds it.
func (l *Lock) Release(_ context.Context) error {
	m, err := l.read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
	} else if m.Owner != l.owner {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}

func (l *Lock) create() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create lock: %w", err)
	}
	defer func() { _ = f.Close() }()

	m := lockMarker{Owner: l.owner, PID: os.Getpid(), AcquiredAt: l.now().UnixMilli()}
	if err := json.NewEncoder(f).Encode(m); err != nil {
		return false, fmt.Errorf("write lock: %w", err)
	}
	return true, nil
}

func (l *Lock) read() (lockMarker, error) {
	var m lockMarker
	data, err := os.ReadFile(l.path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode lock: %w", err)
	}
	return m, nil
}

var _ storage.Lock = (*Lock)(nil)
