// Package reporting renders ledger performance and exit replays as Markdown
// and CSV.
package reporting

import (
	"time"

	"lobbi-trader/internal/backtest"
	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/metrics"
	"lobbi-trader/internal/verification"
)

// Report is the full performance report.
type Report struct {
	GeneratedAt time.Time
	Demo        bool // demo-mint trades were included

	OpenTrade *domain.TradeRecord
	Overall   metrics.Summary
	ByExit    []metrics.Group
	ByDay     []metrics.Group

	// Trades are the closed trades in sell order.
	Trades []*domain.TradeRecord

	// Integrity checks every stored record, demo trades included.
	Integrity *verification.Report

	// Replays are sorted by exit mode.
	Replays []ReplaySection
}

// ReplaySection is one exit mode replayed over the recorded quotes.
type ReplaySection struct {
	Mode       string
	Chain      []string // rule IDs
	Comparison backtest.Comparison
	Results    []*backtest.Result
}
