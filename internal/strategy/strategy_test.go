package strategy

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lobbi-trader/internal/advisor"
	"lobbi-trader/internal/domain"
)

func makePosition(holdSeconds int64, pnl *float64) Position {
	return Position{
		Trade: &domain.TradeRecord{ID: "trade-1", Mint: "mint-1", Symbol: "LOBBI", Why: "volume spike"},
		Plan: domain.HoldPlan{
			HoldMinMs:         60_000,
			HoldMaxMs:         300_000,
			TakeProfitPercent: 30,
			StopLossPercent:   -15,
		},
		Quote: domain.PositionQuote{UnrealizedPnlPercent: pnl, HoldSeconds: holdSeconds},
	}
}

type fakeAdvisor struct {
	advice  advisor.Advice
	enabled bool
	calls   int
}

func (f *fakeAdvisor) AskShouldSell(context.Context, string, string, domain.PositionQuote) advisor.Advice {
	f.calls++
	return f.advice
}

func (f *fakeAdvisor) Enabled() bool { return f.enabled }

type failingRule struct{}

func (failingRule) ID() string { return "failing" }
func (failingRule) Evaluate(context.Context, Position) (Decision, error) {
	return Hold, errors.New("quote feed down")
}

func TestTimeCeiling(t *testing.T) {
	r := NewTimeCeiling(0)
	if r.MaxHold != DefaultMaxHold {
		t.Fatalf("expected default ceiling, got %v", r.MaxHold)
	}

	d, err := r.Evaluate(context.Background(), makePosition(599, nil))
	if err != nil || d.Sell {
		t.Fatalf("expected hold at 599s, got %+v (%v)", d, err)
	}

	d, _ = r.Evaluate(context.Background(), makePosition(601, nil))
	if !d.Sell {
		t.Fatal("expected sell at 601s")
	}
	if d.Reason != "Max hold 10m—time-based exit (held 10m)" {
		t.Errorf("unexpected reason %q", d.Reason)
	}
	if d.Rule != "time_ceiling_600s" {
		t.Errorf("unexpected rule %q", d.Rule)
	}
}

func TestAdvisory(t *testing.T) {
	ctx := context.Background()

	disabled := &fakeAdvisor{advice: advisor.Advice{ShouldSell: true}}
	d, _ := NewAdvisory(disabled).Evaluate(ctx, makePosition(30, nil))
	if d.Sell || disabled.calls != 0 {
		t.Fatalf("disabled advisor must not be asked, got %+v calls=%d", d, disabled.calls)
	}

	hold := &fakeAdvisor{enabled: true}
	d, _ = NewAdvisory(hold).Evaluate(ctx, makePosition(30, nil))
	if d.Sell || hold.calls != 1 {
		t.Fatalf("expected hold after one call, got %+v calls=%d", d, hold.calls)
	}

	sell := &fakeAdvisor{enabled: true, advice: advisor.Advice{ShouldSell: true}}
	d, _ = NewAdvisory(sell).Evaluate(ctx, makePosition(30, nil))
	if !d.Sell || d.Reason != "LLM decided" {
		t.Fatalf("expected default sell reason, got %+v", d)
	}

	sell.advice.Reason = "momentum faded"
	d, _ = NewAdvisory(sell).Evaluate(ctx, makePosition(30, nil))
	if d.Reason != "momentum faded" {
		t.Errorf("expected advisor reason, got %q", d.Reason)
	}
}

func TestThresholds(t *testing.T) {
	ctx := context.Background()
	r := NewThresholds()

	tests := []struct {
		name   string
		held   int64
		pnl    *float64
		sell   bool
		prefix string
	}{
		{"before hold min ignores take profit", 30, domain.Float(50), false, ""},
		{"take profit", 90, domain.Float(31), true, "Take profit hit"},
		{"stop loss", 90, domain.Float(-20), true, "Stop loss hit"},
		{"inside band holds", 90, domain.Float(5), false, ""},
		{"no quote holds before max", 120, nil, false, ""},
		{"hold max forces exit", 300, nil, true, "Hold window elapsed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := r.Evaluate(ctx, makePosition(tc.held, tc.pnl))
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if d.Sell != tc.sell {
				t.Fatalf("expected sell=%v, got %+v", tc.sell, d)
			}
			if tc.sell && !strings.HasPrefix(d.Reason, tc.prefix) {
				t.Errorf("expected reason prefix %q, got %q", tc.prefix, d.Reason)
			}
		})
	}
}

func TestTrailingStop(t *testing.T) {
	ctx := context.Background()
	r := NewTrailingStop(15)

	// Peak at +40%.
	for _, pnl := range []float64{10, 40, 30} {
		d, _ := r.Evaluate(ctx, makePosition(90, domain.Float(pnl)))
		if d.Sell {
			t.Fatalf("unexpected sell at %+.0f%%: %+v", pnl, d)
		}
	}
	if peak, ok := r.Peak("trade-1"); !ok || peak < 39.99 || peak > 40.01 {
		t.Fatalf("expected peak 40, got %v (%v)", peak, ok)
	}

	// 1.40 * 0.85 = 1.19, so +18% is past the trail.
	d, _ := r.Evaluate(ctx, makePosition(95, domain.Float(18)))
	if !d.Sell {
		t.Fatal("expected trailing stop to fire")
	}
	if !strings.HasPrefix(d.Reason, "Trailing stop:") {
		t.Errorf("unexpected reason %q", d.Reason)
	}

	r.Forget("trade-1")
	if _, ok := r.Peak("trade-1"); ok {
		t.Error("expected peak to be forgotten")
	}
}

func TestTrailingStop_NotArmedBeforeHoldMin(t *testing.T) {
	ctx := context.Background()
	r := NewTrailingStop(10)

	_, _ = r.Evaluate(ctx, makePosition(10, domain.Float(50)))
	d, _ := r.Evaluate(ctx, makePosition(20, domain.Float(0)))
	if d.Sell {
		t.Fatalf("trail must not fire before hold min, got %+v", d)
	}
}

func TestLiquidityGuard(t *testing.T) {
	ctx := context.Background()
	r := NewLiquidityGuard(0.30)

	pos := makePosition(60, nil)
	d, _ := r.Evaluate(ctx, pos)
	if d.Sell {
		t.Fatal("missing stats must hold")
	}

	pos.Stats = &domain.MarketStats{LiquidityUsd: domain.Float(10_000)}
	if d, _ = r.Evaluate(ctx, pos); d.Sell {
		t.Fatal("first observation sets entry and holds")
	}

	pos.Stats = &domain.MarketStats{LiquidityUsd: domain.Float(7_500)}
	if d, _ = r.Evaluate(ctx, pos); d.Sell {
		t.Fatal("25% drop is within the guard")
	}

	pos.Stats = &domain.MarketStats{LiquidityUsd: domain.Float(6_000)}
	d, _ = r.Evaluate(ctx, pos)
	if !d.Sell {
		t.Fatal("expected guard to fire on 40% drop")
	}
	if !strings.HasPrefix(d.Reason, "Liquidity fell 40%") {
		t.Errorf("unexpected reason %q", d.Reason)
	}
}

func TestChain_FirstSellWins(t *testing.T) {
	chain := Chain{NewTimeCeiling(0), NewThresholds()}

	d, err := chain.Evaluate(context.Background(), makePosition(700, domain.Float(50)))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Rule != "time_ceiling_600s" {
		t.Errorf("expected ceiling to win, got %q", d.Rule)
	}
}

func TestChain_RuleErrorDoesNotBlockOthers(t *testing.T) {
	chain := Chain{failingRule{}, NewTimeCeiling(0)}

	d, err := chain.Evaluate(context.Background(), makePosition(601, nil))
	if !d.Sell {
		t.Fatal("expected ceiling to sell despite failing rule")
	}
	if err == nil || !strings.Contains(err.Error(), "failing: quote feed down") {
		t.Errorf("expected joined rule error, got %v", err)
	}
}

func TestChain_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, err := Chain{NewTimeCeiling(time.Second)}.Evaluate(ctx, makePosition(601, nil))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if d.Sell {
		t.Error("cancelled evaluation must hold")
	}
}

func TestChain_StatsAndForget(t *testing.T) {
	trail := NewTrailingStop(15)
	guard := NewLiquidityGuard(0.5)
	chain := Chain{NewTimeCeiling(0), trail, guard}

	if !chain.NeedsMarketStats() {
		t.Error("expected chain with liquidity guard to need stats")
	}
	if (Chain{NewTimeCeiling(0), NewThresholds()}).NeedsMarketStats() {
		t.Error("threshold chain does not need stats")
	}

	_, _ = trail.Evaluate(context.Background(), makePosition(10, domain.Float(5)))
	chain.Forget("trade-1")
	if _, ok := trail.Peak("trade-1"); ok {
		t.Error("expected Forget to reach trailing stop")
	}
}

func TestChain_Ceilings(t *testing.T) {
	chain := Chain{NewTimeCeiling(0), NewThresholds(), NewTrailingStop(15)}
	ceilings := chain.Ceilings()
	if len(ceilings) != 1 || ceilings[0].ID() != "time_ceiling_600s" {
		t.Fatalf("expected only the time ceiling, got %v", ceilings.IDs())
	}
	if got := (Chain{NewThresholds()}).Ceilings(); len(got) != 0 {
		t.Errorf("expected no ceilings, got %v", got.IDs())
	}
}
