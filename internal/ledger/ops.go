// Package ledger holds the trade-ledger invariants as pure functions over a
// newest-first record slice, plus a Ledger that applies them to a Repository.
package ledger

import (
	"lobbi-trader/internal/domain"
)

// FindOpen returns the index of the first open record, or -1.
func FindOpen(trades []*domain.TradeRecord) int {
	for i, t := range trades {
		if t.IsOpen() {
			return i
		}
	}
	return -1
}

// RecentMints returns mints of the first n closed records.
func RecentMints(trades []*domain.TradeRecord, n int) []string {
	if n <= 0 {
		return nil
	}
	mints := make([]string, 0, n)
	for _, t := range trades {
		if t.IsOpen() {
			continue
		}
		mints = append(mints, t.Mint)
		if len(mints) == n {
			break
		}
	}
	return mints
}

// FindByKey returns the record matching (mint, txBuy), or nil.
func FindByKey(trades []*domain.TradeRecord, mint, txBuy string) *domain.TradeRecord {
	for _, t := range trades {
		if t.Mint == mint && t.TxBuy == txBuy {
			return t
		}
	}
	return nil
}

// NewOpenRecord builds an open record from a buy.
func NewOpenRecord(id string, buy domain.OpenBuy) *domain.TradeRecord {
	return &domain.TradeRecord{
		ID:              id,
		Mint:            buy.Mint,
		Symbol:          buy.Symbol,
		Name:            buy.Name,
		Why:             buy.Why,
		BuySol:          buy.BuySol,
		BuyTokenAmount:  buy.BuyTokenAmount,
		BuyTimestamp:    domain.FormatTimestamp(buy.BuyTime),
		McapUsd:         buy.McapUsd,
		VolumeAtBuyUsd:  buy.VolumeAtBuyUsd,
		AgeMinutesAtBuy: buy.AgeMinutesAtBuy,
		TxBuy:           buy.TxBuy,
	}
}

// IsRealPosition reports whether an open record reflects an executed buy.
func IsRealPosition(t *domain.TradeRecord) bool {
	return t.IsOpen() && t.TxBuy != "" && t.BuyTokenAmount > 0
}

// ClearStale merges open duplicates sharing (mint, txBuy) and, when no real
// position is open, drops orphaned open records. Closed records are untouched.
func ClearStale(trades []*domain.TradeRecord) ([]*domain.TradeRecord, domain.ClearResult) {
	var res domain.ClearResult

	seenOpen := make(map[string]bool)
	deduped := make([]*domain.TradeRecord, 0, len(trades))
	for _, t := range trades {
		if t.IsOpen() {
			key := t.DedupKey()
			if seenOpen[key] {
				res.Deduplicated++
				continue
			}
			seenOpen[key] = true
		}
		deduped = append(deduped, t)
	}

	hasReal := false
	for _, t := range deduped {
		if IsRealPosition(t) {
			hasReal = true
			break
		}
	}
	if hasReal {
		res.Refused = true
		return deduped, res
	}

	out := deduped[:0]
	for _, t := range deduped {
		if t.IsOpen() {
			res.Removed++
			continue
		}
		out = append(out, t)
	}
	return out, res
}

// CloseOpen applies a sell fill to the open record in place.
// Returns nil if no record is open.
func CloseOpen(trades []*domain.TradeRecord, fill domain.SellFill) *domain.TradeRecord {
	i := FindOpen(trades)
	if i < 0 {
		return nil
	}
	t := trades[i]
	t.SellSol = fill.SellSol
	t.SellTokenAmount = fill.SellTokenAmount
	t.SellTimestamp = domain.FormatTimestamp(fill.SellTime)
	t.TxSell = fill.TxSell
	t.McapAtSellUsd = fill.McapAtSellUsd
	t.VolumeAtSellUsd = fill.VolumeAtSellUsd
	t.AgeMinutesAtSell = fill.AgeMinutesAtSell
	t.WhySold = fill.WhySold
	t.HoldSeconds = domain.HoldSecondsBetween(t.BuyTime(), fill.SellTime)
	t.PnlSol = t.SellSol - t.BuySol
	return t
}
