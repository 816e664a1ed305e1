package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/ledger"
	"lobbi-trader/internal/storage"
)

// TradeLedger implements storage.TradeLedger on the trades table.
// Partial unique indexes back the single-open and (mint, tx_buy) invariants.
type TradeLedger struct {
	pool  *Pool
	log   zerolog.Logger
	newID func() string
}

// NewTradeLedger creates a ledger.
func NewTradeLedger(pool *Pool, log zerolog.Logger) *TradeLedger {
	return &TradeLedger{
		pool:  pool,
		log:   log.With().Str("component", "pg_ledger").Logger(),
		newID: uuid.NewString,
	}
}

var _ storage.TradeLedger = (*TradeLedger)(nil)

const tradeColumns = `id, mint, symbol, name, why, why_sold,
	buy_sol, buy_token_amount, buy_timestamp,
	sell_sol, sell_token_amount, sell_timestamp,
	hold_seconds, pnl_sol,
	mcap_usd, mcap_at_sell_usd, volume_at_buy_usd, volume_at_sell_usd,
	age_minutes_at_buy, age_minutes_at_sell,
	tx_buy, tx_sell`

func scanTrade(row pgx.Row) (*domain.TradeRecord, error) {
	var (
		t      domain.TradeRecord
		buyTs  time.Time
		sellTs *time.Time
	)
	err := row.Scan(
		&t.ID, &t.Mint, &t.Symbol, &t.Name, &t.Why, &t.WhySold,
		&t.BuySol, &t.BuyTokenAmount, &buyTs,
		&t.SellSol, &t.SellTokenAmount, &sellTs,
		&t.HoldSeconds, &t.PnlSol,
		&t.McapUsd, &t.McapAtSellUsd, &t.VolumeAtBuyUsd, &t.VolumeAtSellUsd,
		&t.AgeMinutesAtBuy, &t.AgeMinutesAtSell,
		&t.TxBuy, &t.TxSell,
	)
	if err != nil {
		return nil, err
	}
	t.BuyTimestamp = domain.FormatTimestamp(buyTs)
	if sellTs != nil {
		t.SellTimestamp = domain.FormatTimestamp(*sellTs)
	}
	return &t, nil
}

func scanTrades(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	defer rows.Close()
	var out []*domain.TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetOpenTrade returns the open record, or nil.
func (l *TradeLedger) GetOpenTrade(ctx context.Context) (*domain.TradeRecord, error) {
	row := l.pool.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades
		WHERE sell_timestamp IS NULL ORDER BY seq DESC LIMIT 1`)
	t, err := scanTrade(row)
	if isNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query open trade: %w", err)
	}
	return t, nil
}

// GetRecentMints returns mints of the last n closed trades.
func (l *TradeLedger) GetRecentMints(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := l.pool.Query(ctx, `SELECT mint FROM trades
		WHERE sell_timestamp IS NOT NULL ORDER BY seq DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent mints: %w", err)
	}
	defer rows.Close()

	var mints []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan mint: %w", err)
		}
		mints = append(mints, m)
	}
	return mints, rows.Err()
}

// RecordOpenBuy inserts a new open record.
func (l *TradeLedger) RecordOpenBuy(ctx context.Context, buy domain.OpenBuy) (*domain.TradeRecord, error) {
	if buy.Mint == "" || buy.BuySol <= 0 {
		return nil, fmt.Errorf("%w: mint and buySol required", storage.ErrInvalidInput)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := scanTrade(tx.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades
		WHERE mint = $1 AND tx_buy = $2`, buy.Mint, buy.TxBuy))
	if err == nil {
		l.log.Warn().Str("mint", buy.Mint).Str("tx", buy.TxBuy).Msg("duplicate buy ignored")
		return existing, storage.ErrDuplicateKey
	}
	if !isNotFoundError(err) {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}

	rec := ledger.NewOpenRecord(l.newID(), buy)
	_, err = tx.Exec(ctx, `
		INSERT INTO trades (
			id, mint, symbol, name, why,
			buy_sol, buy_token_amount, buy_timestamp,
			mcap_usd, volume_at_buy_usd, age_minutes_at_buy, tx_buy
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		rec.ID, rec.Mint, rec.Symbol, rec.Name, rec.Why,
		rec.BuySol, rec.BuyTokenAmount, buy.BuyTime.UTC(),
		rec.McapUsd, rec.VolumeAtBuyUsd, rec.AgeMinutesAtBuy, rec.TxBuy,
	)
	if err != nil {
		constraint := uniqueViolation(err)
		if constraint == "" {
			return nil, fmt.Errorf("insert trade: %w", err)
		}
		// A concurrent insert won. If it was this same buy, hand back its row.
		_ = tx.Rollback(ctx)
		existing, serr := scanTrade(l.pool.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades
			WHERE mint = $1 AND tx_buy = $2`, buy.Mint, buy.TxBuy))
		switch {
		case serr == nil:
			l.log.Warn().Str("mint", buy.Mint).Str("tx", buy.TxBuy).Msg("duplicate buy ignored")
			return existing, storage.ErrDuplicateKey
		case !isNotFoundError(serr):
			return nil, fmt.Errorf("reload duplicate buy: %w", serr)
		case constraint == "trades_single_open":
			l.log.Error().Str("mint", buy.Mint).Msg("refusing second open position")
			return nil, storage.ErrOpenPositionExists
		default:
			return nil, fmt.Errorf("insert trade (%s): %w", constraint, storage.ErrDuplicateKey)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// ClearStaleOpenTrades drops orphaned open records when no real position is open.
// Duplicates cannot exist here; the unique indexes reject them on insert.
func (l *TradeLedger) ClearStaleOpenTrades(ctx context.Context) (domain.ClearResult, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return domain.ClearResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT `+tradeColumns+` FROM trades
		WHERE sell_timestamp IS NULL ORDER BY seq DESC FOR UPDATE`)
	if err != nil {
		return domain.ClearResult{}, fmt.Errorf("query open trades: %w", err)
	}
	open, err := scanTrades(rows)
	if err != nil {
		return domain.ClearResult{}, err
	}

	kept, res := ledger.ClearStale(open)
	if res.Refused {
		l.log.Error().Msg("real open position present, stale clear refused")
	}

	keep := make(map[string]bool, len(kept))
	for _, t := range kept {
		keep[t.ID] = true
	}
	var drop []string
	for _, t := range open {
		if !keep[t.ID] {
			drop = append(drop, t.ID)
		}
	}
	if len(drop) == 0 {
		return res, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM trades WHERE id = ANY($1)`, drop); err != nil {
		return res, fmt.Errorf("delete stale trades: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	l.log.Warn().Int("removed", len(drop)).Msg("cleared stale open trades")
	return res, nil
}

// UpdateOpenTradeToSold closes the open record.
func (l *TradeLedger) UpdateOpenTradeToSold(ctx context.Context, fill domain.SellFill) (*domain.TradeRecord, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	open, err := scanTrade(tx.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades
		WHERE sell_timestamp IS NULL ORDER BY seq DESC LIMIT 1 FOR UPDATE`))
	if isNotFoundError(err) {
		l.log.Warn().Msg("no open trade to close")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query open trade: %w", err)
	}

	rec := ledger.CloseOpen([]*domain.TradeRecord{open}, fill)
	_, err = tx.Exec(ctx, `
		UPDATE trades SET
			sell_sol = $2, sell_token_amount = $3, sell_timestamp = $4,
			hold_seconds = $5, pnl_sol = $6,
			mcap_at_sell_usd = $7, volume_at_sell_usd = $8, age_minutes_at_sell = $9,
			why_sold = $10, tx_sell = $11
		WHERE id = $1
	`,
		rec.ID, rec.SellSol, rec.SellTokenAmount, fill.SellTime.UTC(),
		rec.HoldSeconds, rec.PnlSol,
		rec.McapAtSellUsd, rec.VolumeAtSellUsd, rec.AgeMinutesAtSell,
		rec.WhySold, rec.TxSell,
	)
	if err != nil {
		return nil, fmt.Errorf("update trade: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// ListTrades returns all records, newest first.
func (l *TradeLedger) ListTrades(ctx context.Context) ([]*domain.TradeRecord, error) {
	rows, err := l.pool.Query(ctx, `SELECT `+tradeColumns+` FROM trades ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	return scanTrades(rows)
}
