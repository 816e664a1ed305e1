package memory

import (
	"context"
	"sort"
	"sync"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/storage"
)

// QuoteStore is an in-memory implementation of storage.QuoteStore.
type QuoteStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.QuoteSample // keyed by trade_id
}

// NewQuoteStore creates an empty quote store.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{data: make(map[string][]*domain.QuoteSample)}
}

// Insert adds one sample.
func (s *QuoteStore) Insert(_ context.Context, q *domain.QuoteSample) error {
	if q == nil || q.TradeID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *q
	s.data[q.TradeID] = append(s.data[q.TradeID], &cp)
	return nil
}

// GetByTradeID returns samples ordered by timestamp ASC.
func (s *QuoteStore) GetByTradeID(_ context.Context, tradeID string) ([]*domain.QuoteSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := s.data[tradeID]
	out := make([]*domain.QuoteSample, len(samples))
	for i, q := range samples {
		cp := *q
		out[i] = &cp
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampMs < out[j].TimestampMs
	})
	return out, nil
}

var _ storage.QuoteStore = (*QuoteStore)(nil)
