package storage

import (
	"context"

	"lobbi-trader/internal/domain"
)

// TradeLedger is the trade log. At most one record is open at any time.
type TradeLedger interface {
	// GetOpenTrade returns the open record, or nil if none.
	GetOpenTrade(ctx context.Context) (*domain.TradeRecord, error)

	// GetRecentMints returns mints of the last n closed trades, most recent first.
	GetRecentMints(ctx context.Context, n int) ([]string, error)

	// RecordOpenBuy prepends a new open record.
	// Returns the existing record and ErrDuplicateKey if (mint, txBuy) is already recorded,
	// ErrOpenPositionExists if a different position is open.
	RecordOpenBuy(ctx context.Context, buy domain.OpenBuy) (*domain.TradeRecord, error)

	// ClearStaleOpenTrades merges duplicate open records and drops orphaned ones.
	// A real open position is never dropped.
	ClearStaleOpenTrades(ctx context.Context) (domain.ClearResult, error)

	// UpdateOpenTradeToSold closes the open record in place.
	// Returns nil, nil if no record is open.
	UpdateOpenTradeToSold(ctx context.Context, fill domain.SellFill) (*domain.TradeRecord, error)

	// ListTrades returns all records, newest first.
	ListTrades(ctx context.Context) ([]*domain.TradeRecord, error)
}

// StateStore holds the single agent state snapshot.
type StateStore interface {
	// SetState overwrites the snapshot.
	SetState(ctx context.Context, s domain.AgentState) error

	// GetState returns the snapshot, or an idle state if none is stored.
	GetState(ctx context.Context) (domain.AgentState, error)
}

// Lock is an advisory, TTL-bounded cycle lock shared across processes.
type Lock interface {
	// TryAcquire takes the lock if free or expired. Returns false if held by another owner.
	TryAcquire(ctx context.Context) (bool, error)

	// Release drops the lock if held by this owner.
	Release(ctx context.Context) error
}

// ActivityLog is the append-only human-facing activity feed.
type ActivityLog interface {
	// Append adds an entry.
	Append(ctx context.Context, e domain.ActivityEntry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]domain.ActivityEntry, error)
}

// QuoteStore records hold-monitor quote samples.
type QuoteStore interface {
	// Insert adds one sample.
	Insert(ctx context.Context, s *domain.QuoteSample) error

	// GetByTradeID returns samples for a trade ordered by timestamp ASC.
	GetByTradeID(ctx context.Context, tradeID string) ([]*domain.QuoteSample, error)
}
