// Package narrative formats human-readable buy rationales for the dashboard.
// Phrasing is chosen deterministically from the mint so a position always
// reads the same; nothing in the trading logic depends on the wording.
package narrative

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/shopspring/decimal"

	"lobbi-trader/internal/domain"
)

var openers = []string{
	"Picked %s off the fresh-launch board.",
	"%s caught my eye in the latest scan.",
	"Going in on %s.",
	"%s looked like the liveliest of the batch.",
	"Taking a small swing at %s.",
}

var holderLines = []string{
	"%d holders with the top 10 at %.0f%% of supply.",
	"Holder spread: %d wallets, top 10 own %.0f%%.",
}

var closers = []string{
	"Planning to hold up to %s.",
	"Exit window is %s at most.",
	"Will look to be out within %s.",
}

// BuyWhy builds the rationale stored on the trade record.
func BuyWhy(c domain.Candidate, plan domain.HoldPlan, h *domain.HolderStats, ageMinutes *float64) string {
	seed := seedOf(c.Mint)
	sym := c.Symbol
	if sym == "" {
		sym = "this token"
	}

	parts := []string{
		fmt.Sprintf(pick(openers, seed), "$"+sym),
		domain.CandidateReason(c.VolumeUsd, c.McapUsd, ageMinutes) + ".",
	}
	if h != nil {
		parts = append(parts, fmt.Sprintf(pick(holderLines, seed>>3), h.HolderCount, h.Top10Percent))
	}
	if plan.Reason != "" && plan.Reason != "default" {
		parts = append(parts, "Signals: "+plan.Reason+".")
	}
	parts = append(parts,
		fmt.Sprintf(pick(closers, seed>>5), formatDuration(plan.HoldMaxMs)),
		fmt.Sprintf("TP %+.0f%% / SL %.0f%%.", plan.TakeProfitPercent, plan.StopLossPercent),
	)
	return strings.Join(parts, " ")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// SoldMessage renders "Sold SYM • PnL: +0.0123 SOL".
func SoldMessage(symbol string, pnlSol float64) string {
	return fmt.Sprintf("Sold %s • PnL: %s SOL", symbol, SignedSol(pnlSol))
}

// SignedSol formats a SOL amount with sign and four decimals.
func SignedSol(v float64) string {
	d := decimal.NewFromFloat(v).Round(4)
	if d.Sign() >= 0 {
		return "+" + d.StringFixed(4)
	}
	return d.StringFixed(4)
}

func formatDuration(ms int64) string {
	secs := ms / 1000
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	if secs%60 == 0 {
		return fmt.Sprintf("%dm", secs/60)
	}
	return fmt.Sprintf("%dm%02ds", secs/60, secs%60)
}

func seedOf(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func pick(options []string, seed uint32) string {
	return options[int(seed%uint32(len(options)))]
}
