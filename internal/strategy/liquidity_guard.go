package strategy

import (
	"context"
	"fmt"
	"sync"
)

// LiquidityGuard exits when pool liquidity drops LiquidityDropPct below the
// first liquidity observed for the trade.
type LiquidityGuard struct {
	LiquidityDropPct float64 // fraction, e.g. 0.30 = 30% drop

	mu    sync.Mutex
	entry map[string]float64
}

// NewLiquidityGuard creates a LiquidityGuard.
func NewLiquidityGuard(dropPct float64) *LiquidityGuard {
	return &LiquidityGuard{LiquidityDropPct: dropPct, entry: make(map[string]float64)}
}

// ID returns the rule identifier including parameters.
func (r *LiquidityGuard) ID() string {
	return fmt.Sprintf("liquidity_guard_drop%.0f", r.LiquidityDropPct*100)
}

// NeedsMarketStats reports true.
func (r *LiquidityGuard) NeedsMarketStats() bool { return true }

// Evaluate compares current liquidity with the entry level. Missing stats hold.
func (r *LiquidityGuard) Evaluate(_ context.Context, p Position) (Decision, error) {
	if p.Stats == nil || p.Stats.LiquidityUsd == nil || *p.Stats.LiquidityUsd < 0 {
		return Hold, nil
	}
	current := *p.Stats.LiquidityUsd

	r.mu.Lock()
	entry, ok := r.entry[p.tradeID()]
	if !ok {
		entry = current
		r.entry[p.tradeID()] = entry
	}
	r.mu.Unlock()

	if entry <= 0 {
		return Hold, nil
	}
	threshold := entry * (1 - r.LiquidityDropPct)
	if current >= threshold {
		return Hold, nil
	}
	return Decision{
		Sell:   true,
		Reason: fmt.Sprintf("Liquidity fell %.0f%% since entry ($%.0f → $%.0f)", (1-current/entry)*100, entry, current),
		Rule:   r.ID(),
	}, nil
}

// Forget drops the entry level for a closed trade.
func (r *LiquidityGuard) Forget(tradeID string) {
	r.mu.Lock()
	delete(r.entry, tradeID)
	r.mu.Unlock()
}

var _ ExitRule = (*LiquidityGuard)(nil)
