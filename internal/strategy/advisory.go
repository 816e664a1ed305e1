package strategy

import (
	"context"
	"strings"

	"lobbi-trader/internal/advisor"
)

// Advisory defers the exit to a SellAdvisor. With a disabled advisor it
// always holds and the time ceiling closes the position.
type Advisory struct {
	Advisor advisor.SellAdvisor
}

// NewAdvisory creates an Advisory rule.
func NewAdvisory(a advisor.SellAdvisor) *Advisory {
	return &Advisory{Advisor: a}
}

// ID returns the rule identifier.
func (r *Advisory) ID() string { return "advisor" }

// Evaluate asks the advisor.
func (r *Advisory) Evaluate(ctx context.Context, p Position) (Decision, error) {
	if r.Advisor == nil || !r.Advisor.Enabled() || p.Trade == nil {
		return Hold, nil
	}
	adv := r.Advisor.AskShouldSell(ctx, p.Trade.Symbol, p.Trade.Why, p.Quote)
	if !adv.ShouldSell {
		return Hold, nil
	}
	reason := strings.TrimSpace(adv.Reason)
	if reason == "" {
		reason = "LLM decided"
	}
	return Decision{Sell: true, Reason: reason, Rule: r.ID()}, nil
}

var _ ExitRule = (*Advisory)(nil)
