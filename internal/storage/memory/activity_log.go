package memory

import (
	"context"
	"sync"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/storage"
)

// ActivityLog is an in-memory implementation of storage.ActivityLog.
type ActivityLog struct {
	mu      sync.RWMutex
	entries []domain.ActivityEntry // oldest first
}

// NewActivityLog creates an empty log.
func NewActivityLog() *ActivityLog {
	return &ActivityLog{}
}

// Append adds an entry.
func (l *ActivityLog) Append(_ context.Context, e domain.ActivityEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *ActivityLog) Recent(_ context.Context, limit int) ([]domain.ActivityEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return newestFirst(l.entries, limit), nil
}

func newestFirst(entries []domain.ActivityEntry, limit int) []domain.ActivityEntry {
	n := len(entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.ActivityEntry, 0, n)
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, entries[i])
	}
	return out
}

var _ storage.ActivityLog = (*ActivityLog)(nil)
