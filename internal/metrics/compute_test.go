package metrics

import (
	"math"
	"testing"
	"time"

	"lobbi-trader/internal/domain"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func closed(id string, minute int, buySol, pnl float64, why string) *domain.TradeRecord {
	return &domain.TradeRecord{
		ID:            id,
		Mint:          "mint-" + id,
		BuySol:        buySol,
		SellSol:       buySol + pnl,
		PnlSol:        pnl,
		HoldSeconds:   int64(60 * (minute + 1)),
		BuyTimestamp:  domain.FormatTimestamp(t0),
		SellTimestamp: domain.FormatTimestamp(t0.Add(time.Duration(minute) * time.Minute)),
		WhySold:       why,
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCompute_Empty(t *testing.T) {
	s := Compute(nil)
	if s.TradeCount != 0 || s.WinRate != 0 || s.MaxDrawdownSol != 0 {
		t.Errorf("expected zero summary, got %+v", s)
	}
}

func TestCompute_IgnoresOpenTrades(t *testing.T) {
	trades := []*domain.TradeRecord{
		closed("a", 1, 0.1, 0.02, ""),
		{ID: "open", BuySol: 0.1, BuyTimestamp: domain.FormatTimestamp(t0)},
	}
	s := Compute(trades)
	if s.TradeCount != 1 {
		t.Fatalf("expected 1 closed trade, got %d", s.TradeCount)
	}
	if !approx(s.TotalBuySol, 0.1) {
		t.Errorf("expected TotalBuySol 0.1, got %f", s.TotalBuySol)
	}
}

func TestCompute_Distribution(t *testing.T) {
	// Out of order on purpose: drawdown follows sell time.
	trades := []*domain.TradeRecord{
		closed("c", 3, 0.1, 0.05, ""),
		closed("a", 1, 0.1, 0.04, ""),
		closed("b", 2, 0.1, -0.03, ""),
		closed("d", 4, 0.1, -0.02, ""),
		closed("e", 5, 0.1, 0, ""),
	}
	s := Compute(trades)

	if s.TradeCount != 5 || s.Wins != 2 || s.Losses != 3 {
		t.Fatalf("counts: got %d/%d/%d", s.TradeCount, s.Wins, s.Losses)
	}
	if !approx(s.WinRate, 0.4) {
		t.Errorf("expected WinRate 0.4, got %f", s.WinRate)
	}
	if !approx(s.TotalPnlSol, 0.04) {
		t.Errorf("expected TotalPnlSol 0.04, got %f", s.TotalPnlSol)
	}
	if !approx(s.MedianPnlSol, 0) {
		t.Errorf("expected median 0, got %f", s.MedianPnlSol)
	}
	// sorted: -0.03 -0.02 0 0.04 0.05; p10 idx 0.4
	if !approx(s.P10PnlSol, -0.026) {
		t.Errorf("expected p10 -0.026, got %f", s.P10PnlSol)
	}
	if s.BestPnlSol != 0.05 || s.WorstPnlSol != -0.03 {
		t.Errorf("best/worst: got %f/%f", s.BestPnlSol, s.WorstPnlSol)
	}
	// cumulative: 0.04, 0.01, 0.06, 0.04, 0.04; peak 0.06
	if !approx(s.MaxDrawdownSol, 0.03) {
		t.Errorf("expected MaxDrawdown 0.03, got %f", s.MaxDrawdownSol)
	}
	// -0.02 then 0 in a row
	if s.MaxConsecutiveLosses != 2 {
		t.Errorf("expected MaxConsecutiveLosses 2, got %d", s.MaxConsecutiveLosses)
	}
	if !approx(s.MeanReturnPct, 8) {
		t.Errorf("expected MeanReturnPct 8, got %f", s.MeanReturnPct)
	}
	if !approx(s.AvgHoldSeconds, 240) {
		t.Errorf("expected AvgHoldSeconds 240, got %f", s.AvgHoldSeconds)
	}
}

func TestStddev_Sample(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	got := stddev(xs, mean(xs))
	want := math.Sqrt(32.0 / 7.0)
	if !approx(got, want) {
		t.Errorf("expected %f, got %f", want, got)
	}
	if stddev([]float64{1}, 1) != 0 {
		t.Error("single sample should have zero stddev")
	}
}

func TestPercentile_Edges(t *testing.T) {
	if percentile(nil, 0.5) != 0 {
		t.Error("empty should be 0")
	}
	if percentile([]float64{3}, 0.9) != 3 {
		t.Error("single value should be returned")
	}
	if percentile([]float64{1, 2}, 1) != 2 {
		t.Error("p100 should be max")
	}
}

func TestExitKind(t *testing.T) {
	tests := []struct {
		why  string
		want string
	}{
		{"Take profit hit (+42.0%, target +40%)", ExitTakeProfit},
		{"Stop loss hit (-21.0%, limit -20%)", ExitStopLoss},
		{"Hold window elapsed (held 9m)", ExitHoldWindow},
		{"Max hold 10m—time-based exit (held 10m)", ExitMaxHold},
		{"Trailing stop: 15.2% off peak (peak +30.0%, now +10.2%)", ExitTrailing},
		{"Liquidity fell 40% since entry ($10000 → $6000)", ExitLiquidity},
		{"Agent exit", ExitManual},
		{"Momentum faded, locking in gains", ExitAdvisor},
		{"", ExitAdvisor},
	}
	for _, tt := range tests {
		got := ExitKind(&domain.TradeRecord{WhySold: tt.why})
		if got != tt.want {
			t.Errorf("ExitKind(%q) = %s, want %s", tt.why, got, tt.want)
		}
	}
}

func TestByExit(t *testing.T) {
	trades := []*domain.TradeRecord{
		closed("a", 1, 0.1, 0.04, "Take profit hit"),
		closed("b", 2, 0.1, -0.02, "Stop loss hit"),
		closed("c", 3, 0.1, 0.05, "Take profit hit"),
	}
	groups := ByExit(trades)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Key != ExitStopLoss || groups[1].Key != ExitTakeProfit {
		t.Errorf("groups not sorted by key: %s, %s", groups[0].Key, groups[1].Key)
	}
	if groups[1].TradeCount != 2 || !approx(groups[1].TotalPnlSol, 0.09) {
		t.Errorf("take profit group: %+v", groups[1].Summary)
	}
}
