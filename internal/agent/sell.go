package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/narrative"
	"lobbi-trader/internal/observability"
)

// DefaultSellReason is recorded when an exit carries no reason.
const DefaultSellReason = "Lobbi exit"

// FixedProceedsRatio is the last-resort proceeds estimate as a share of the buy.
const FixedProceedsRatio = 0.95

// Where sell proceeds came from.
const (
	ProceedsExecutor  = "executor"
	ProceedsBalance   = "balance"
	ProceedsMcapRatio = "mcap_ratio"
	ProceedsFixed     = "fixed"
)

// ProceedsInput is what is known about a sale when its proceeds are booked.
type ProceedsInput struct {
	Executor      float64
	BalanceBefore *float64
	BalanceAfter  *float64
	BuySol        float64
	McapBuyUsd    *float64
	McapSellUsd   *float64
}

// ReconcileProceeds picks the first positive proceeds figure: the executor's,
// the wallet balance difference, the buy scaled by the market-cap ratio, or a
// fixed share of the buy.
func ReconcileProceeds(in ProceedsInput) (float64, string) {
	if in.Executor > 0 {
		return in.Executor, ProceedsExecutor
	}
	if in.BalanceBefore != nil && in.BalanceAfter != nil {
		if diff := *in.BalanceAfter - *in.BalanceBefore; diff > 0 {
			return diff, ProceedsBalance
		}
	}
	if buy, sell := value(in.McapBuyUsd), value(in.McapSellUsd); buy > 0 && sell > 0 {
		return in.BuySol * sell / buy, ProceedsMcapRatio
	}
	return in.BuySol * FixedProceedsRatio, ProceedsFixed
}

// sell closes t through the executor and books it in the ledger. It returns
// the closed record, or nil when the ledger had nothing open anymore.
func (a *Agent) sell(ctx context.Context, t *domain.TradeRecord, reason string) (*domain.TradeRecord, error) {
	if reason == "" {
		reason = DefaultSellReason
	}

	before := a.balance(ctx)
	res, err := a.exec.Sell(ctx, t.Mint, t.BuyTokenAmount, a.filters)
	if err != nil {
		return nil, fmt.Errorf("sell %s: %w", t.Symbol, err)
	}
	// From here on the swap is done and must be booked even if ctx is cancelled.
	bctx := context.WithoutCancel(ctx)

	var after *float64
	if res.SolReceived <= 0 && before != nil {
		if err := a.sleep(ctx, ProceedsGrace); err == nil {
			after = a.balance(bctx)
		}
	}

	sellTime := a.now()
	mcapSell, volSell, ageSell := a.statsAtSell(bctx, t, sellTime)

	proceeds, source := ReconcileProceeds(ProceedsInput{
		Executor:      res.SolReceived,
		BalanceBefore: before,
		BalanceAfter:  after,
		BuySol:        t.BuySol,
		McapBuyUsd:    t.McapUsd,
		McapSellUsd:   mcapSell,
	})

	closed, err := a.ledger.UpdateOpenTradeToSold(bctx, domain.SellFill{
		SellSol:          proceeds,
		SellTokenAmount:  t.BuyTokenAmount,
		SellTime:         sellTime,
		TxSell:           res.Tx,
		McapAtSellUsd:    mcapSell,
		WhySold:          reason,
		VolumeAtSellUsd:  volSell,
		AgeMinutesAtSell: ageSell,
	})
	if err != nil {
		a.log.Error().Err(err).Str("mint", t.Mint).Str("tx", res.Tx).Msg("sold but could not close the position")
		return nil, fmt.Errorf("record sell: %w", err)
	}
	if closed == nil {
		a.log.Warn().Str("mint", t.Mint).Str("tx", res.Tx).Msg("sold but no open position was recorded")
		return nil, nil
	}

	observability.RecordSell(closed.PnlSol, source)
	a.publishSold(bctx, closed)
	msg := narrative.SoldMessage(closed.Symbol, closed.PnlSol)
	a.appendActivity(bctx, domain.ActivityEntry{
		Type:    domain.ActivitySell,
		Symbol:  closed.Symbol,
		Message: msg,
		Reason:  reason,
	})
	a.notifyf(bctx, "%s\n%s", msg, reason)

	a.log.Info().
		Str("symbol", closed.Symbol).
		Float64("sell_sol", proceeds).
		Str("proceeds_source", source).
		Float64("pnl_sol", closed.PnlSol).
		Int64("held_s", closed.HoldSeconds).
		Str("tx", res.Tx).
		Msg("sold")
	return closed, nil
}

// balance is best effort; nil when unknown.
func (a *Agent) balance(ctx context.Context) *float64 {
	b, err := a.exec.Balance(ctx)
	if err != nil {
		a.log.Debug().Err(err).Msg("wallet balance unavailable")
		return nil
	}
	return b
}

// statsAtSell gathers mcap, volume and age for the closing record.
func (a *Agent) statsAtSell(ctx context.Context, t *domain.TradeRecord, now time.Time) (mcap, vol, age *float64) {
	var created *int64
	if a.stats != nil {
		s, err := a.stats.MarketStats(ctx, t.Mint)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Debug().Err(err).Str("mint", t.Mint).Msg("market stats at sell unavailable")
		}
		if s != nil {
			mcap, vol, created = s.McapUsd, s.VolumeUsd, s.PairCreatedAtMs
		}
	}
	if mcap == nil {
		mcap = a.lookupMcap(ctx, t.Mint)
	}

	nowMs := now.UnixMilli()
	switch {
	case created != nil && *created > 0 && *created <= nowMs:
		age = domain.Float(math.Round(float64(nowMs-*created) / 60000))
	case t.AgeMinutesAtBuy != nil:
		held := float64(nowMs-t.BuyTime().UnixMilli()) / 60000
		age = domain.Float(math.Round(*t.AgeMinutesAtBuy + math.Max(held, 0)))
	}
	return mcap, vol, age
}
