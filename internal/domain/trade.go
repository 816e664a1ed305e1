package domain

import (
	"math"
	"time"
)

// TimestampLayout is the on-disk timestamp format (UTC, millisecond precision).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// TradeRecord represents one position, open or closed.
// An open record has an empty SellTimestamp.
type TradeRecord struct {
	ID     string `json:"id"`   // uuid v4
	Mint   string `json:"mint"` // token mint address
	Symbol string `json:"symbol"`
	Name   string `json:"name"`

	Why     string `json:"why"`               // buy rationale
	WhySold string `json:"whySold,omitempty"` // exit rationale

	// Entry
	BuySol         float64 `json:"buySol"`
	BuyTokenAmount float64 `json:"buyTokenAmount"`
	BuyTimestamp   string  `json:"buyTimestamp"`

	// Exit (zero values while open)
	SellSol         float64 `json:"sellSol"`
	SellTokenAmount float64 `json:"sellTokenAmount"`
	SellTimestamp   string  `json:"sellTimestamp"`

	// Outcome, computed at close
	HoldSeconds int64   `json:"holdSeconds"`
	PnlSol      float64 `json:"pnlSol"`

	// Market context (nullable)
	McapUsd          *float64 `json:"mcapUsd,omitempty"`
	McapAtSellUsd    *float64 `json:"mcapAtSellUsd,omitempty"`
	VolumeAtBuyUsd   *float64 `json:"volumeAtBuyUsd,omitempty"`
	VolumeAtSellUsd  *float64 `json:"volumeAtSellUsd,omitempty"`
	AgeMinutesAtBuy  *float64 `json:"ageMinutesAtBuy,omitempty"`
	AgeMinutesAtSell *float64 `json:"ageMinutesAtSell,omitempty"`

	TxBuy  string `json:"txBuy,omitempty"`
	TxSell string `json:"txSell,omitempty"`
}

// IsOpen reports whether the record has no recorded sell.
func (t *TradeRecord) IsOpen() bool {
	return t.SellTimestamp == ""
}

// BuyTime parses BuyTimestamp. Zero time if unparseable.
func (t *TradeRecord) BuyTime() time.Time {
	return ParseTimestamp(t.BuyTimestamp)
}

// SellTime parses SellTimestamp. Zero time if open or unparseable.
func (t *TradeRecord) SellTime() time.Time {
	return ParseTimestamp(t.SellTimestamp)
}

// DedupKey identifies a buy submission.
func (t *TradeRecord) DedupKey() string {
	return t.Mint + "|" + t.TxBuy
}

// Clone returns a deep copy.
func (t *TradeRecord) Clone() *TradeRecord {
	c := *t
	c.McapUsd = cloneFloat(t.McapUsd)
	c.McapAtSellUsd = cloneFloat(t.McapAtSellUsd)
	c.VolumeAtBuyUsd = cloneFloat(t.VolumeAtBuyUsd)
	c.VolumeAtSellUsd = cloneFloat(t.VolumeAtSellUsd)
	c.AgeMinutesAtBuy = cloneFloat(t.AgeMinutesAtBuy)
	c.AgeMinutesAtSell = cloneFloat(t.AgeMinutesAtSell)
	return &c
}

// OpenBuy holds the fields of a freshly executed buy.
type OpenBuy struct {
	Mint            string
	Symbol          string
	Name            string
	Why             string
	BuySol          float64
	BuyTokenAmount  float64
	BuyTime         time.Time
	McapUsd         *float64
	VolumeAtBuyUsd  *float64
	AgeMinutesAtBuy *float64
	TxBuy           string
}

// SellFill holds the fields written to the open record at close.
type SellFill struct {
	SellSol          float64
	SellTokenAmount  float64
	SellTime         time.Time
	TxSell           string
	McapAtSellUsd    *float64
	WhySold          string
	VolumeAtSellUsd  *float64
	AgeMinutesAtSell *float64
}

// ClearResult reports what ClearStaleOpenTrades did.
type ClearResult struct {
	Deduplicated int  // duplicate open records merged
	Removed      int  // orphaned open records dropped
	Refused      bool // a real open position blocked the clear
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses RFC 3339 timestamps with or without fractional seconds.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HoldSecondsBetween returns whole seconds from buy to sell, never negative.
func HoldSecondsBetween(buy, sell time.Time) int64 {
	if buy.IsZero() || sell.Before(buy) {
		return 0
	}
	return int64(math.Floor(sell.Sub(buy).Seconds()))
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
