package memory

import (
	"context"
	"sync"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/ledger"
)

// TradeRepository is an in-memory implementation of ledger.Repository.
type TradeRepository struct {
	mu     sync.RWMutex
	trades []*domain.TradeRecord // newest first
}

// NewTradeRepository creates an empty repository.
func NewTradeRepository() *TradeRepository {
	return &TradeRepository{}
}

// LoadTrades returns a deep copy of the stored list.
func (r *TradeRepository) LoadTrades(_ context.Context) ([]*domain.TradeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneTrades(r.trades), nil
}

// SaveTrades replaces the stored list with a deep copy.
func (r *TradeRepository) SaveTrades(_ context.Context, trades []*domain.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = cloneTrades(trades)
	return nil
}

func cloneTrades(in []*domain.TradeRecord) []*domain.TradeRecord {
	out := make([]*domain.TradeRecord, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}

var _ ledger.Repository = (*TradeRepository)(nil)
