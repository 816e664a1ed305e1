package verification

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/ledger"
	"lobbi-trader/internal/storage/memory"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func closedTrade(id string) *domain.TradeRecord {
	return &domain.TradeRecord{
		ID:            id,
		Mint:          "mint-" + id,
		BuySol:        0.1,
		SellSol:       0.12,
		PnlSol:        0.02,
		HoldSeconds:   90,
		BuyTimestamp:  domain.FormatTimestamp(t0),
		SellTimestamp: domain.FormatTimestamp(t0.Add(90 * time.Second)),
		TxBuy:         "tx-" + id,
	}
}

func TestCheckTrade_Match(t *testing.T) {
	if divs := CheckTrade(closedTrade("a")); len(divs) != 0 {
		t.Errorf("expected no divergences, got %+v", divs)
	}
}

func TestCheckTrade_Divergences(t *testing.T) {
	tr := closedTrade("a")
	tr.PnlSol = 0.5
	tr.HoldSeconds = 10

	divs := CheckTrade(tr)
	fields := map[string]bool{}
	for _, d := range divs {
		fields[d.Field] = true
	}
	if !fields["PnlSol"] || !fields["HoldSeconds"] {
		t.Errorf("expected PnlSol and HoldSeconds divergences, got %+v", divs)
	}
}

func TestCheckTrade_SellBeforeBuy(t *testing.T) {
	tr := closedTrade("a")
	tr.SellTimestamp = domain.FormatTimestamp(t0.Add(-time.Minute))
	divs := CheckTrade(tr)
	if len(divs) != 1 || divs[0].Field != "SellTimestamp" {
		t.Errorf("expected SellTimestamp divergence, got %+v", divs)
	}
}

func TestCheckTrade_OpenWithProceeds(t *testing.T) {
	tr := &domain.TradeRecord{ID: "o", Mint: "m", BuySol: 0.1, BuyTimestamp: domain.FormatTimestamp(t0), SellSol: 0.2}
	divs := CheckTrade(tr)
	if len(divs) != 1 || divs[0].Field != "SellSol" {
		t.Errorf("expected SellSol divergence, got %+v", divs)
	}
}

func TestVerify_LedgerRules(t *testing.T) {
	open1 := &domain.TradeRecord{ID: "o1", Mint: "m1", BuySol: 0.1, BuyTimestamp: domain.FormatTimestamp(t0), TxBuy: "tx1"}
	open2 := &domain.TradeRecord{ID: "o2", Mint: "m1", BuySol: 0.1, BuyTimestamp: domain.FormatTimestamp(t0), TxBuy: "tx1"}
	dupID := closedTrade("a")

	r := Verify([]*domain.TradeRecord{closedTrade("a"), dupID, open1, open2})
	if r.OK() {
		t.Fatal("expected ledger errors")
	}
	if len(r.LedgerErrors) != 4 {
		t.Fatalf("expected 4 ledger errors, got %v", r.LedgerErrors)
	}
	joined := strings.Join(r.Issues(), "\n")
	for _, want := range []string{"2 open positions", "trade id a appears 2 times", "buy tx-a of mint-a recorded 2 times", "buy tx1 of m1 recorded 2 times"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing issue %q in:\n%s", want, joined)
		}
	}
	if r.MatchedTrades != 4 {
		t.Errorf("expected all records individually valid, got %d", r.MatchedTrades)
	}
}

func TestVerifyAll_FromLedger(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.NewTradeRepository(), zerolog.Nop())
	if _, err := l.RecordOpenBuy(ctx, domain.OpenBuy{Mint: "MintA", BuySol: 0.1, BuyTime: t0, TxBuy: "txA"}); err != nil {
		t.Fatalf("RecordOpenBuy failed: %v", err)
	}
	if _, err := l.UpdateOpenTradeToSold(ctx, domain.SellFill{SellSol: 0.08, SellTime: t0.Add(time.Minute)}); err != nil {
		t.Fatalf("UpdateOpenTradeToSold failed: %v", err)
	}

	r, err := NewVerifier(l).VerifyAll(ctx)
	if err != nil {
		t.Fatalf("VerifyAll failed: %v", err)
	}
	if !r.OK() || r.TotalTrades != 1 {
		t.Errorf("expected a clean one-trade ledger, got %+v", r)
	}
}
