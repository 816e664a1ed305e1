package file

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/ledger"
)

// TradeRepository keeps the trade list in a single JSON array, newest first.
type TradeRepository struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

// NewTradeRepository creates a repository at dir/trades.json.
func NewTradeRepository(dir string, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		path: filepath.Join(dir, TradesFile),
		log:  log.With().Str("component", "trades_file").Logger(),
	}
}

// LoadTrades reads the list. Missing or corrupt files read as empty.
func (r *TradeRepository) LoadTrades(_ context.Context) ([]*domain.TradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var trades []*domain.TradeRecord
	ok, err := readJSON(r.path, &trades)
	if err != nil {
		r.log.Warn().Err(err).Msg("read trades failed, using empty ledger")
		return nil, nil
	}
	if !ok {
		return nil, nil
	}

	out := trades[:0]
	for _, t := range trades {
		if t != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

// SaveTrades rewrites the whole file atomically.
func (r *TradeRepository) SaveTrades(_ context.Context, trades []*domain.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if trades == nil {
		trades = []*domain.TradeRecord{}
	}
	return writeJSON(r.path, trades)
}

var _ ledger.Repository = (*TradeRepository)(nil)
