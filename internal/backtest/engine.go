// Package backtest replays recorded hold-monitor quotes through an exit
// chain, to compare what a chain would have done against what the agent
// actually realized.
package backtest

import (
	"context"
	"time"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/strategy"
)

// Result is the replay of one closed trade.
type Result struct {
	TradeID string `json:"tradeId"`
	Mint    string `json:"mint"`
	Symbol  string `json:"symbol"`
	Samples int    `json:"samples"`

	RealizedPnlSol float64 `json:"realizedPnlSol"`
	RealizedExit   string  `json:"realizedExit"`

	// Exited is false when no sample triggered a sell; the replay PnL is then
	// the last sample's, as if the position were marked at end of data.
	Exited      bool     `json:"exited"`
	Rule        string   `json:"rule,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	HoldSeconds int64    `json:"holdSeconds"`
	PnlPercent  *float64 `json:"pnlPercent,omitempty"`
	PnlSol      *float64 `json:"pnlSol,omitempty"`
	RuleErrors  int      `json:"ruleErrors,omitempty"`
}

// Delta is replay PnL minus realized PnL, if the replay has a PnL.
func (r *Result) Delta() (float64, bool) {
	if r.PnlSol == nil {
		return 0, false
	}
	return *r.PnlSol - r.RealizedPnlSol, true
}

// Engine feeds one trade's samples through a chain.
type Engine struct {
	chain  strategy.Chain
	trade  *domain.TradeRecord
	plan   domain.HoldPlan
	result *Result
}

// NewEngine starts a replay of trade.
func NewEngine(chain strategy.Chain, trade *domain.TradeRecord, plan domain.HoldPlan) *Engine {
	return &Engine{
		chain: chain,
		trade: trade,
		plan:  plan,
		result: &Result{
			TradeID:        trade.ID,
			Mint:           trade.Mint,
			Symbol:         trade.Symbol,
			RealizedPnlSol: trade.PnlSol,
			RealizedExit:   trade.WhySold,
		},
	}
}

// OnSample evaluates one sample. It reports true once the chain has exited;
// later samples are ignored.
func (e *Engine) OnSample(ctx context.Context, s *domain.QuoteSample) (bool, error) {
	if e.result.Exited {
		return true, nil
	}
	e.result.Samples++

	q := domain.PositionQuote{
		CurrentPriceUsd:      s.PriceUsd,
		UnrealizedPnlPercent: s.PnlPercent,
		UnrealizedPnlSol:     e.pnlSol(s),
		HoldSeconds:          s.HoldSeconds,
	}
	if q.HoldSeconds == 0 && s.TimestampMs > 0 {
		if buy := e.trade.BuyTime(); !buy.IsZero() {
			q.HoldSeconds = int64(time.UnixMilli(s.TimestampMs).Sub(buy) / time.Second)
		}
	}

	chain := e.chain
	if q.UnrealizedPnlPercent == nil {
		chain = chain.Ceilings()
	}
	// A failing rule still leaves a usable decision from the others.
	d, err := chain.Evaluate(ctx, strategy.Position{Trade: e.trade, Plan: e.plan, Quote: q})
	if cerr := ctx.Err(); cerr != nil {
		return false, cerr
	}
	if err != nil {
		e.result.RuleErrors++
	}

	e.result.HoldSeconds = q.HoldSeconds
	if q.UnrealizedPnlPercent != nil {
		e.result.PnlPercent = q.UnrealizedPnlPercent
		e.result.PnlSol = q.UnrealizedPnlSol
	}
	if d.Sell {
		e.result.Exited = true
		e.result.Rule = d.Rule
		e.result.Reason = d.Reason
	}
	return d.Sell, nil
}

// pnlSol prefers the recorded SOL PnL and derives it from the percentage
// otherwise.
func (e *Engine) pnlSol(s *domain.QuoteSample) *float64 {
	if s.PnlSol != nil {
		return s.PnlSol
	}
	if s.PnlPercent == nil || e.trade.BuySol <= 0 {
		return nil
	}
	v := e.trade.BuySol * *s.PnlPercent / 100
	return &v
}

// Result returns the replay outcome and releases per-trade rule state.
func (e *Engine) Result() *Result {
	e.chain.Forget(e.trade.ID)
	return e.result
}
