package domain

import (
	"fmt"
	"strings"
	"time"
)

// Candidate is a token produced by discovery. Never persisted on its own.
type Candidate struct {
	Mint   string `json:"mint"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Reason string `json:"reason"`

	VolumeUsd         *float64 `json:"volumeUsd,omitempty"`    // 24h volume
	McapUsd           *float64 `json:"mcapUsd,omitempty"`      // fdv or market cap
	LiquidityUsd      *float64 `json:"liquidityUsd,omitempty"` // pool liquidity
	PairCreatedAtMs   *int64   `json:"pairCreatedAt,omitempty"`
	GlobalFeesPaidSol *float64 `json:"globalFeesPaidSol,omitempty"` // venue activity proxy

	DexID   string   `json:"dexId,omitempty"`
	URL     string   `json:"url,omitempty"`
	Socials *Socials `json:"socials,omitempty"`
}

// Socials holds optional links published for a token.
type Socials struct {
	Twitter  string `json:"twitter,omitempty"`
	Telegram string `json:"telegram,omitempty"`
	Website  string `json:"website,omitempty"`
}

// AgeMinutes returns minutes since pair creation, or nil when unknown.
func (c *Candidate) AgeMinutes(now time.Time) *float64 {
	if c.PairCreatedAtMs == nil || *c.PairCreatedAtMs <= 0 {
		return nil
	}
	age := float64(now.UnixMilli()-*c.PairCreatedAtMs) / 60000
	if age < 0 {
		age = 0
	}
	return &age
}

// IsDemoMint reports whether the mint is a placeholder used by demo data.
func IsDemoMint(mint string) bool {
	return strings.HasPrefix(mint, "Demo")
}

// IsPumpMint reports whether the mint carries the pump.fun vanity suffix.
func IsPumpMint(mint string) bool {
	return strings.HasSuffix(mint, "pump")
}

// CandidateReason formats the audit text for a candidate, e.g.
// "Vol $12.3k · Mcap $20.1k · 14m old". Unknown parts are omitted.
func CandidateReason(volume, mcap, ageMinutes *float64) string {
	var parts []string
	if volume != nil {
		parts = append(parts, "Vol $"+FormatUsdK(*volume))
	}
	if mcap != nil {
		parts = append(parts, "Mcap $"+FormatUsdK(*mcap))
	}
	if ageMinutes != nil {
		parts = append(parts, fmt.Sprintf("%dm old", int64(*ageMinutes)))
	}
	if len(parts) == 0 {
		return "new listing"
	}
	return strings.Join(parts, " · ")
}

// FormatUsdK renders a USD amount in thousands with one decimal.
func FormatUsdK(v float64) string {
	return fmt.Sprintf("%.1fk", v/1000)
}

// HolderStats summarizes token holder distribution.
type HolderStats struct {
	HolderCount  int     `json:"holderCount"`
	Top10Percent float64 `json:"top10Percent"` // share of supply held by top 10
	IsGood       bool    `json:"isGoodHolders"`
}

// Good holder thresholds.
const (
	GoodHolderMinCount    = 20
	GoodHolderMaxTop10Pct = 70
)

// NewHolderStats builds stats and classifies the distribution.
func NewHolderStats(count int, top10 float64) *HolderStats {
	return &HolderStats{
		HolderCount:  count,
		Top10Percent: top10,
		IsGood:       count >= GoodHolderMinCount && top10 < GoodHolderMaxTop10Pct,
	}
}

// MarketStats is a point-in-time snapshot from a market feed.
type MarketStats struct {
	McapUsd         *float64
	VolumeUsd       *float64
	LiquidityUsd    *float64
	PriceUsd        *float64
	PairCreatedAtMs *int64
}

// HoldPlan is the computed hold window and exit thresholds for one position.
type HoldPlan struct {
	HoldMinMs         int64   `json:"holdMinMs"`
	HoldMaxMs         int64   `json:"holdMaxMs"`
	TakeProfitPercent float64 `json:"takeProfitPercent"`
	StopLossPercent   float64 `json:"stopLossPercent"`
	Reason            string  `json:"reason"`
}

// PositionQuote is a live unrealized-PnL view of the open position.
type PositionQuote struct {
	CurrentPriceUsd      *float64 `json:"currentPriceUsd,omitempty"`
	UnrealizedPnlPercent *float64 `json:"unrealizedPnlPercent,omitempty"`
	UnrealizedPnlSol     *float64 `json:"unrealizedPnlSol,omitempty"`
	BuyPriceUsd          *float64 `json:"buyPriceUsd,omitempty"`
	HoldSeconds          int64    `json:"holdSeconds"`
}

// QuoteSample is one hold-monitor observation.
type QuoteSample struct {
	TradeID     string   `json:"tradeId"`
	Mint        string   `json:"mint"`
	TimestampMs int64    `json:"timestampMs"`
	PriceUsd    *float64 `json:"priceUsd,omitempty"`
	PnlPercent  *float64 `json:"pnlPercent,omitempty"`
	PnlSol      *float64 `json:"pnlSol,omitempty"`
	HoldSeconds int64    `json:"holdSeconds"`
	Decision    string   `json:"decision"` // hold | sell
}

// Quote decisions
const (
	DecisionHold = "hold"
	DecisionSell = "sell"
)
