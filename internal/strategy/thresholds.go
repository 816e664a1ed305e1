package strategy

import (
	"context"
	"fmt"
	"time"
)

// Thresholds applies the hold plan: take profit and stop loss once the
// minimum hold has passed, and a forced exit at the plan's maximum.
type Thresholds struct{}

// NewThresholds creates a Thresholds rule.
func NewThresholds() *Thresholds { return &Thresholds{} }

// ID returns the rule identifier.
func (r *Thresholds) ID() string { return "thresholds" }

// Evaluate checks the plan against the quote.
func (r *Thresholds) Evaluate(_ context.Context, p Position) (Decision, error) {
	held := p.Held()
	if held < time.Duration(p.Plan.HoldMinMs)*time.Millisecond {
		return Hold, nil
	}

	if pnl := p.Quote.UnrealizedPnlPercent; pnl != nil {
		if p.Plan.TakeProfitPercent > 0 && *pnl >= p.Plan.TakeProfitPercent {
			return Decision{
				Sell:   true,
				Reason: fmt.Sprintf("Take profit hit (+%.1f%%, target +%.0f%%)", *pnl, p.Plan.TakeProfitPercent),
				Rule:   r.ID(),
			}, nil
		}
		if p.Plan.StopLossPercent < 0 && *pnl <= p.Plan.StopLossPercent {
			return Decision{
				Sell:   true,
				Reason: fmt.Sprintf("Stop loss hit (%.1f%%, limit %.0f%%)", *pnl, p.Plan.StopLossPercent),
				Rule:   r.ID(),
			}, nil
		}
	}

	if p.Plan.HoldMaxMs > 0 && held >= time.Duration(p.Plan.HoldMaxMs)*time.Millisecond {
		return Decision{
			Sell:   true,
			Reason: fmt.Sprintf("Hold window elapsed (held %dm)", heldMinutes(p)),
			Rule:   r.ID(),
		}, nil
	}
	return Hold, nil
}

var _ ExitRule = (*Thresholds)(nil)
