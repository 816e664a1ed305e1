// Package metrics summarizes closed trades from the ledger.
package metrics

import (
	"math"
	"sort"
	"strings"

	"lobbi-trader/internal/domain"
)

// Summary describes a set of closed trades. PnL figures are in SOL,
// returns in percent of the SOL spent.
type Summary struct {
	TradeCount int     `json:"tradeCount"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	WinRate    float64 `json:"winRate"`

	TotalPnlSol  float64 `json:"totalPnlSol"`
	MeanPnlSol   float64 `json:"meanPnlSol"`
	MedianPnlSol float64 `json:"medianPnlSol"`
	P10PnlSol    float64 `json:"p10PnlSol"`
	P90PnlSol    float64 `json:"p90PnlSol"`
	StddevPnlSol float64 `json:"stddevPnlSol"`
	BestPnlSol   float64 `json:"bestPnlSol"`
	WorstPnlSol  float64 `json:"worstPnlSol"`

	MeanReturnPct float64 `json:"meanReturnPct"`

	MaxDrawdownSol       float64 `json:"maxDrawdownSol"`
	MaxConsecutiveLosses int     `json:"maxConsecutiveLosses"`

	AvgHoldSeconds float64 `json:"avgHoldSeconds"`
	TotalBuySol    float64 `json:"totalBuySol"`
}

// Closed returns closed trades ordered by sell time ASC, ID ASC.
func Closed(trades []*domain.TradeRecord) []*domain.TradeRecord {
	out := make([]*domain.TradeRecord, 0, len(trades))
	for _, t := range trades {
		if !t.IsOpen() {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].SellTime(), out[j].SellTime()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Compute summarizes the closed trades in trades. Open records are ignored.
// A trade with PnlSol > 0 is a win; break-even counts as a loss.
func Compute(trades []*domain.TradeRecord) Summary {
	closed := Closed(trades)
	n := len(closed)
	if n == 0 {
		return Summary{}
	}

	var s Summary
	s.TradeCount = n

	pnls := make([]float64, n)
	returns := make([]float64, 0, n)
	var holdSum float64
	for i, t := range closed {
		pnls[i] = t.PnlSol
		s.TotalPnlSol += t.PnlSol
		s.TotalBuySol += t.BuySol
		holdSum += float64(t.HoldSeconds)
		if t.PnlSol > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
		if t.BuySol > 0 {
			returns = append(returns, t.PnlSol/t.BuySol*100)
		}
	}

	sorted := make([]float64, n)
	copy(sorted, pnls)
	sort.Float64s(sorted)

	s.WinRate = winRate(s.Wins, n)
	s.MeanPnlSol = mean(pnls)
	s.MedianPnlSol = percentile(sorted, 0.50)
	s.P10PnlSol = percentile(sorted, 0.10)
	s.P90PnlSol = percentile(sorted, 0.90)
	s.StddevPnlSol = stddev(pnls, s.MeanPnlSol)
	s.WorstPnlSol = sorted[0]
	s.BestPnlSol = sorted[n-1]
	s.MeanReturnPct = mean(returns)
	s.MaxDrawdownSol = maxDrawdown(pnls)
	s.MaxConsecutiveLosses = maxConsecutiveLosses(pnls)
	s.AvgHoldSeconds = holdSum / float64(n)
	return s
}

// Exit kinds, derived from the recorded exit reason.
const (
	ExitTakeProfit = "take_profit"
	ExitStopLoss   = "stop_loss"
	ExitHoldWindow = "hold_window"
	ExitMaxHold    = "max_hold"
	ExitTrailing   = "trailing_stop"
	ExitLiquidity  = "liquidity"
	ExitManual     = "manual"
	ExitAdvisor    = "advisor"
)

var exitPrefixes = []struct {
	prefix string
	kind   string
}{
	{"take profit", ExitTakeProfit},
	{"stop loss", ExitStopLoss},
	{"hold window", ExitHoldWindow},
	{"max hold", ExitMaxHold},
	{"trailing stop", ExitTrailing},
	{"liquidity", ExitLiquidity},
	{"agent exit", ExitManual},
}

// ExitKind classifies a trade by its exit reason. Reasons that match no
// rule came from the sell advisor.
func ExitKind(t *domain.TradeRecord) string {
	why := strings.ToLower(strings.TrimSpace(t.WhySold))
	for _, p := range exitPrefixes {
		if strings.HasPrefix(why, p.prefix) {
			return p.kind
		}
	}
	return ExitAdvisor
}

// Group is a Summary for one key.
type Group struct {
	Key string `json:"key"`
	Summary
}

// GroupBy summarizes closed trades per key, sorted by key.
func GroupBy(trades []*domain.TradeRecord, key func(*domain.TradeRecord) string) []Group {
	buckets := make(map[string][]*domain.TradeRecord)
	for _, t := range Closed(trades) {
		k := key(t)
		buckets[k] = append(buckets[k], t)
	}
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Group, 0, len(keys))
	for _, k := range keys {
		out = append(out, Group{Key: k, Summary: Compute(buckets[k])})
	}
	return out
}

// ByExit groups closed trades by ExitKind.
func ByExit(trades []*domain.TradeRecord) []Group {
	return GroupBy(trades, ExitKind)
}

func winRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(xs []float64, m float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// percentile interpolates linearly. sorted must be ascending; p in [0, 1].
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// maxDrawdown is the worst peak-to-trough fall of cumulative PnL.
// pnls must be in chronological order.
func maxDrawdown(pnls []float64) float64 {
	cumulative, peak, worst := 0.0, 0.0, 0.0
	for _, p := range pnls {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > worst {
			worst = dd
		}
	}
	return worst
}

func maxConsecutiveLosses(pnls []float64) int {
	run, longest := 0, 0
	for _, p := range pnls {
		if p > 0 {
			run = 0
			continue
		}
		run++
		if run > longest {
			longest = run
		}
	}
	return longest
}
