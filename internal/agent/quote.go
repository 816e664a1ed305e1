package agent

import (
	"math"
	"time"

	"lobbi-trader/internal/domain"
)

// ComputeQuote values the open trade at priceUsd. Without a positive price
// only the hold time is known.
func ComputeQuote(t *domain.TradeRecord, priceUsd *float64, solUsd float64, now time.Time) domain.PositionQuote {
	q := domain.PositionQuote{
		HoldSeconds: int64(math.Round(now.Sub(t.BuyTime()).Seconds())),
	}
	if q.HoldSeconds < 0 {
		q.HoldSeconds = 0
	}
	if priceUsd == nil || *priceUsd <= 0 || t.BuyTokenAmount <= 0 || t.BuySol <= 0 || solUsd <= 0 {
		return q
	}

	price := *priceUsd
	currentUsd := t.BuyTokenAmount * price
	buyUsd := t.BuySol * solUsd
	pnlSol := currentUsd/solUsd - t.BuySol
	pnlPct := (currentUsd - buyUsd) / buyUsd * 100
	buyPrice := buyUsd / t.BuyTokenAmount

	q.CurrentPriceUsd = &price
	q.UnrealizedPnlSol = &pnlSol
	q.UnrealizedPnlPercent = &pnlPct
	q.BuyPriceUsd = &buyPrice
	return q
}
