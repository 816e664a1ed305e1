package clickhouse

import (
	"context"
	"fmt"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/storage"
)

// QuoteStore implements storage.QuoteStore on the position_quotes table.
type QuoteStore struct {
	conn *Conn
}

// NewQuoteStore creates a QuoteStore.
func NewQuoteStore(conn *Conn) *QuoteStore {
	return &QuoteStore{conn: conn}
}

// Compile-time interface check.
var _ storage.QuoteStore = (*QuoteStore)(nil)

// Insert appends one sample. MergeTree does not enforce uniqueness.
func (s *QuoteStore) Insert(ctx context.Context, q *domain.QuoteSample) error {
	if q == nil || q.TradeID == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO position_quotes (
			trade_id, mint, timestamp_ms, price_usd, pnl_percent, pnl_sol, hold_seconds, decision
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	if err := batch.Append(
		q.TradeID, q.Mint, q.TimestampMs,
		q.PriceUsd, q.PnlPercent, q.PnlSol,
		q.HoldSeconds, q.Decision,
	); err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTradeID returns samples for a trade ordered by timestamp ASC.
func (s *QuoteStore) GetByTradeID(ctx context.Context, tradeID string) ([]*domain.QuoteSample, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT trade_id, mint, timestamp_ms, price_usd, pnl_percent, pnl_sol, hold_seconds, decision
		FROM position_quotes
		WHERE trade_id = ?
		ORDER BY timestamp_ms ASC
	`, tradeID)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	var out []*domain.QuoteSample
	for rows.Next() {
		var q domain.QuoteSample
		if err := rows.Scan(
			&q.TradeID, &q.Mint, &q.TimestampMs,
			&q.PriceUsd, &q.PnlPercent, &q.PnlSol,
			&q.HoldSeconds, &q.Decision,
		); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		out = append(out, &q)
	}
	return out, rows.Err()
}
