package backtest

import (
	"context"
	"fmt"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/metrics"
	"lobbi-trader/internal/storage"
	"lobbi-trader/internal/strategy"
)

// Runner replays trades from a quote store.
type Runner struct {
	quotes storage.QuoteStore
	plan   domain.HoldPlan
}

// NewRunner replays with plan as every trade's hold plan.
func NewRunner(quotes storage.QuoteStore, plan domain.HoldPlan) *Runner {
	return &Runner{quotes: quotes, plan: plan}
}

// Run replays one trade's samples in timestamp order.
func (r *Runner) Run(ctx context.Context, trade *domain.TradeRecord, chain strategy.Chain) (*Result, error) {
	samples, err := r.quotes.GetByTradeID(ctx, trade.ID)
	if err != nil {
		return nil, fmt.Errorf("quotes for %s: %w", trade.ID, err)
	}
	engine := NewEngine(chain, trade, r.plan)
	for _, s := range samples {
		done, err := engine.OnSample(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", trade.ID, err)
		}
		if done {
			break
		}
	}
	return engine.Result(), nil
}

// RunAll replays every closed trade that has samples, in sell order.
func (r *Runner) RunAll(ctx context.Context, trades []*domain.TradeRecord, chain strategy.Chain) ([]*Result, error) {
	var out []*Result
	for _, t := range metrics.Closed(trades) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := r.Run(ctx, t, chain)
		if err != nil {
			return nil, err
		}
		if res.Samples > 0 {
			out = append(out, res)
		}
	}
	return out, nil
}

// Comparison totals replay results against realized outcomes.
type Comparison struct {
	Trades         int     `json:"trades"`
	Exited         int     `json:"exited"`
	RealizedPnlSol float64 `json:"realizedPnlSol"`
	ReplayPnlSol   float64 `json:"replayPnlSol"`
	Better         int     `json:"better"`
	Worse          int     `json:"worse"`
}

// Compare sums results. Trades without a replay PnL count at their
// realized value on both sides.
func Compare(results []*Result) Comparison {
	var c Comparison
	for _, r := range results {
		c.Trades++
		c.RealizedPnlSol += r.RealizedPnlSol
		if r.Exited {
			c.Exited++
		}
		d, ok := r.Delta()
		if !ok {
			c.ReplayPnlSol += r.RealizedPnlSol
			continue
		}
		c.ReplayPnlSol += *r.PnlSol
		switch {
		case d > 1e-12:
			c.Better++
		case d < -1e-12:
			c.Worse++
		}
	}
	return c
}
