// Package verification checks stored trade records against the values the
// ledger derives from them, and the ledger as a whole against its
// single-open-position and dedup rules.
package verification

import (
	"context"
	"fmt"
	"math"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/storage"
)

// FloatTolerance is the tolerance for SOL comparisons.
const FloatTolerance = 1e-9

// FieldDivergence is a stored value that differs from the derived one.
type FieldDivergence struct {
	Field    string
	Expected any // derived value
	Actual   any // stored value
}

// Result is the check of a single trade.
type Result struct {
	TradeID     string
	Mint        string
	Match       bool
	Divergences []FieldDivergence
}

// Report covers the whole ledger.
type Report struct {
	TotalTrades     int
	MatchedTrades   int
	DivergentTrades int
	// LedgerErrors are violations that span records.
	LedgerErrors []string
	Results      []Result // divergent trades only
}

// OK reports whether nothing was found.
func (r *Report) OK() bool {
	return r.DivergentTrades == 0 && len(r.LedgerErrors) == 0
}

// Issues flattens the report into one line per problem.
func (r *Report) Issues() []string {
	out := append([]string(nil), r.LedgerErrors...)
	for _, res := range r.Results {
		for _, d := range res.Divergences {
			out = append(out, fmt.Sprintf("trade %s (%s): %s stored %v, expected %v",
				res.TradeID, res.Mint, d.Field, d.Actual, d.Expected))
		}
	}
	return out
}

// Verifier checks the records of a ledger.
type Verifier struct {
	ledger storage.TradeLedger
}

// NewVerifier creates a Verifier.
func NewVerifier(ledger storage.TradeLedger) *Verifier {
	return &Verifier{ledger: ledger}
}

// VerifyAll loads every record and checks it.
func (v *Verifier) VerifyAll(ctx context.Context) (*Report, error) {
	trades, err := v.ledger.ListTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return Verify(trades), nil
}

// Verify checks trades without touching storage.
func Verify(trades []*domain.TradeRecord) *Report {
	r := &Report{TotalTrades: len(trades)}

	ids := make(map[string]int)
	keys := make(map[string]int)
	open := 0
	for _, t := range trades {
		ids[t.ID]++
		keys[t.DedupKey()]++
		if t.IsOpen() {
			open++
		}

		divs := CheckTrade(t)
		if len(divs) == 0 {
			r.MatchedTrades++
			continue
		}
		r.DivergentTrades++
		r.Results = append(r.Results, Result{TradeID: t.ID, Mint: t.Mint, Divergences: divs})
	}

	if open > 1 {
		r.LedgerErrors = append(r.LedgerErrors, fmt.Sprintf("%d open positions, at most one allowed", open))
	}
	for _, t := range trades {
		if n := ids[t.ID]; n > 1 {
			r.LedgerErrors = append(r.LedgerErrors, fmt.Sprintf("trade id %s appears %d times", t.ID, n))
			ids[t.ID] = 0
		}
		if t.TxBuy == "" {
			continue
		}
		if n := keys[t.DedupKey()]; n > 1 {
			r.LedgerErrors = append(r.LedgerErrors, fmt.Sprintf("buy %s of %s recorded %d times", t.TxBuy, t.Mint, n))
			keys[t.DedupKey()] = 0
		}
	}
	return r
}

// CheckTrade compares one record's derived fields with a recomputation.
func CheckTrade(t *domain.TradeRecord) []FieldDivergence {
	var divs []FieldDivergence
	add := func(field string, expected, actual any) {
		divs = append(divs, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}

	if t.ID == "" {
		add("ID", "non-empty", t.ID)
	}
	if t.Mint == "" {
		add("Mint", "non-empty", t.Mint)
	}
	if t.BuySol <= 0 {
		add("BuySol", "> 0", t.BuySol)
	}
	buy := t.BuyTime()
	if buy.IsZero() {
		add("BuyTimestamp", "valid timestamp", t.BuyTimestamp)
	}

	if t.IsOpen() {
		if t.SellSol != 0 {
			add("SellSol", 0.0, t.SellSol)
		}
		if t.PnlSol != 0 {
			add("PnlSol", 0.0, t.PnlSol)
		}
		return divs
	}

	sell := t.SellTime()
	switch {
	case sell.IsZero():
		add("SellTimestamp", "valid timestamp", t.SellTimestamp)
	case !buy.IsZero() && sell.Before(buy):
		add("SellTimestamp", "after "+t.BuyTimestamp, t.SellTimestamp)
	case !buy.IsZero():
		if want := domain.HoldSecondsBetween(buy, sell); want != t.HoldSeconds {
			add("HoldSeconds", want, t.HoldSeconds)
		}
	}
	if want := t.SellSol - t.BuySol; !floatEquals(want, t.PnlSol) {
		add("PnlSol", want, t.PnlSol)
	}
	if t.SellSol < 0 {
		add("SellSol", ">= 0", t.SellSol)
	}
	return divs
}

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
