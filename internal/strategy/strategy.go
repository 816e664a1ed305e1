// Package strategy decides when to close the open position.
//
// Rules are evaluated in order on every poll; the first rule that says sell
// wins. Stateful rules (trailing stop, liquidity guard) key their memory by
// trade ID and must be told to Forget a trade once it closes.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"lobbi-trader/internal/domain"
)

// Position is the snapshot a rule looks at.
type Position struct {
	Trade *domain.TradeRecord
	Plan  domain.HoldPlan
	Quote domain.PositionQuote
	// Stats is filled only when the chain asks for market stats.
	Stats *domain.MarketStats
}

// Held returns how long the position has been open.
func (p Position) Held() time.Duration {
	return time.Duration(p.Quote.HoldSeconds) * time.Second
}

func (p Position) tradeID() string {
	if p.Trade == nil {
		return ""
	}
	return p.Trade.ID
}

// Decision is the outcome of an evaluation.
type Decision struct {
	Sell   bool
	Reason string
	// Rule is the ID of the rule that decided.
	Rule string
}

// Hold is the zero decision.
var Hold = Decision{}

// ExitRule is one exit condition.
type ExitRule interface {
	// ID returns the rule identifier including parameters.
	ID() string
	Evaluate(ctx context.Context, p Position) (Decision, error)
}

// statsConsumer is implemented by rules that read Position.Stats.
type statsConsumer interface {
	NeedsMarketStats() bool
}

// forgetter is implemented by rules that keep per-trade state.
type forgetter interface {
	Forget(tradeID string)
}

// Chain evaluates rules in order.
type Chain []ExitRule

// Evaluate returns the first sell decision. A failing rule is skipped and its
// error joined into the returned error; the decision is still usable.
func (c Chain) Evaluate(ctx context.Context, p Position) (Decision, error) {
	var errs []error
	for _, r := range c {
		if err := ctx.Err(); err != nil {
			return Hold, err
		}
		d, err := r.Evaluate(ctx, p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.ID(), err))
			continue
		}
		if d.Sell {
			if d.Rule == "" {
				d.Rule = r.ID()
			}
			return d, errors.Join(errs...)
		}
	}
	return Hold, errors.Join(errs...)
}

// NeedsMarketStats reports whether any rule reads Position.Stats.
func (c Chain) NeedsMarketStats() bool {
	for _, r := range c {
		if sc, ok := r.(statsConsumer); ok && sc.NeedsMarketStats() {
			return true
		}
	}
	return false
}

// Forget drops per-trade state in every stateful rule.
func (c Chain) Forget(tradeID string) {
	for _, r := range c {
		if f, ok := r.(forgetter); ok {
			f.Forget(tradeID)
		}
	}
}

// IDs lists rule identifiers in evaluation order.
func (c Chain) IDs() []string {
	ids := make([]string, len(c))
	for i, r := range c {
		ids[i] = r.ID()
	}
	return ids
}

func heldMinutes(p Position) int64 {
	return int64(math.Round(float64(p.Quote.HoldSeconds) / 60))
}

// HardCeilingOnly reports whether nothing but the time ceiling can close a
// position, as with an advisor chain whose advisor is disabled.
func (c Chain) HardCeilingOnly() bool {
	for _, r := range c {
		switch rule := r.(type) {
		case *TimeCeiling:
		case *Advisory:
			if rule.Advisor != nil && rule.Advisor.Enabled() {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Ceilings returns only the time ceilings, for polls without a usable quote.
func (c Chain) Ceilings() Chain {
	var out Chain
	for _, r := range c {
		if _, ok := r.(*TimeCeiling); ok {
			out = append(out, r)
		}
	}
	return out
}
