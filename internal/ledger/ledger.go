package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/storage"
)

// Repository loads and saves the whole trade list, newest first.
// Implementations must make Save atomic with respect to concurrent Load.
type Repository interface {
	LoadTrades(ctx context.Context) ([]*domain.TradeRecord, error)
	SaveTrades(ctx context.Context, trades []*domain.TradeRecord) error
}

// Ledger implements storage.TradeLedger over a Repository.
// Every operation reloads from the repository; nothing is cached across calls.
type Ledger struct {
	repo  Repository
	log   zerolog.Logger
	newID func() string
	mu    sync.Mutex
}

// New creates a Ledger.
func New(repo Repository, log zerolog.Logger) *Ledger {
	return &Ledger{
		repo:  repo,
		log:   log.With().Str("component", "ledger").Logger(),
		newID: uuid.NewString,
	}
}

// GetOpenTrade returns the open record, or nil.
func (l *Ledger) GetOpenTrade(ctx context.Context) (*domain.TradeRecord, error) {
	trades, err := l.repo.LoadTrades(ctx)
	if err != nil {
		return nil, err
	}
	if i := FindOpen(trades); i >= 0 {
		return trades[i].Clone(), nil
	}
	return nil, nil
}

// GetRecentMints returns mints of the last n closed trades.
func (l *Ledger) GetRecentMints(ctx context.Context, n int) ([]string, error) {
	trades, err := l.repo.LoadTrades(ctx)
	if err != nil {
		return nil, err
	}
	return RecentMints(trades, n), nil
}

// RecordOpenBuy prepends a new open record.
func (l *Ledger) RecordOpenBuy(ctx context.Context, buy domain.OpenBuy) (*domain.TradeRecord, error) {
	if buy.Mint == "" || buy.BuySol <= 0 {
		return nil, fmt.Errorf("%w: mint and buySol required", storage.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	trades, err := l.repo.LoadTrades(ctx)
	if err != nil {
		return nil, err
	}

	if existing := FindByKey(trades, buy.Mint, buy.TxBuy); existing != nil {
		l.log.Warn().Str("mint", buy.Mint).Str("tx", buy.TxBuy).Msg("duplicate buy ignored")
		return existing.Clone(), storage.ErrDuplicateKey
	}
	if i := FindOpen(trades); i >= 0 {
		l.log.Error().Str("open_mint", trades[i].Mint).Str("mint", buy.Mint).Msg("refusing second open position")
		return nil, storage.ErrOpenPositionExists
	}

	rec := NewOpenRecord(l.newID(), buy)
	trades = append([]*domain.TradeRecord{rec}, trades...)
	if err := l.repo.SaveTrades(ctx, trades); err != nil {
		return nil, fmt.Errorf("save trades: %w", err)
	}
	return rec.Clone(), nil
}

// ClearStaleOpenTrades merges duplicate open records and drops orphans.
func (l *Ledger) ClearStaleOpenTrades(ctx context.Context) (domain.ClearResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	trades, err := l.repo.LoadTrades(ctx)
	if err != nil {
		return domain.ClearResult{}, err
	}

	out, res := ClearStale(trades)
	if res.Refused {
		l.log.Error().Msg("real open position present, stale clear refused")
	}
	if res.Deduplicated == 0 && res.Removed == 0 {
		return res, nil
	}

	l.log.Warn().
		Int("deduplicated", res.Deduplicated).
		Int("removed", res.Removed).
		Msg("cleared stale open trades")
	if err := l.repo.SaveTrades(ctx, out); err != nil {
		return res, fmt.Errorf("save trades: %w", err)
	}
	return res, nil
}

// UpdateOpenTradeToSold closes the open record.
func (l *Ledger) UpdateOpenTradeToSold(ctx context.Context, fill domain.SellFill) (*domain.TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	trades, err := l.repo.LoadTrades(ctx)
	if err != nil {
		return nil, err
	}

	rec := CloseOpen(trades, fill)
	if rec == nil {
		l.log.Warn().Msg("no open trade to close")
		return nil, nil
	}
	if err := l.repo.SaveTrades(ctx, trades); err != nil {
		return nil, fmt.Errorf("save trades: %w", err)
	}
	return rec.Clone(), nil
}

// ListTrades returns all records, newest first.
func (l *Ledger) ListTrades(ctx context.Context) ([]*domain.TradeRecord, error) {
	trades, err := l.repo.LoadTrades(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.TradeRecord, len(trades))
	for i, t := range trades {
		out[i] = t.Clone()
	}
	return out, nil
}

var _ storage.TradeLedger = (*Ledger)(nil)
