package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/storage"
)

// ActivityLog appends entries as JSON lines to dir/activity.jsonl.
type ActivityLog struct {
	path string
	mu   sync.Mutex
}

// NewActivityLog creates a log under dir.
func NewActivityLog(dir string) *ActivityLog {
	return &ActivityLog{path: filepath.Join(dir, ActivityFile)}
}

// Append writes one line.
func (l *ActivityLog) Append(_ context.Context, e domain.ActivityEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = f.Write(append(b, '\n'))
	return err
}

// Recent returns the last limit entries, newest first. Malformed lines are skipped.
func (l *ActivityLog) Recent(_ context.Context, limit int) ([]domain.ActivityEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]domain.ActivityEntry, 0, limit)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 2<<20)
	for sc.Scan() {
		var e domain.ActivityEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		if len(buf) == limit {
			copy(buf, buf[1:])
			buf[len(buf)-1] = e
			continue
		}
		buf = append(buf, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf, nil
}

var _ storage.ActivityLog = (*ActivityLog)(nil)
