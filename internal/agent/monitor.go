package agent

import (
	"context"
	"fmt"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/observability"
	"lobbi-trader/internal/strategy"
)

// holdActivityEvery spaces hold lines in the activity log to about one per 30s.
const holdActivityEvery = 30

// holdAndSell polls the open position until an exit rule fires, then sells.
// It returns nil without selling when the ledger no longer shows the
// position open, and ctx.Err() when interrupted.
func (a *Agent) holdAndSell(ctx context.Context, open *domain.TradeRecord, plan domain.HoldPlan) error {
	defer a.exit.Forget(open.ID)

	for {
		if err := a.sleep(ctx, HoldPollEvery); err != nil {
			return err
		}

		current, err := a.ledger.GetOpenTrade(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.log.Warn().Err(err).Str("mint", open.Mint).Msg("re-read open trade")
			continue
		}
		if current == nil || current.Mint != open.Mint {
			a.log.Info().Str("mint", open.Mint).Msg("position no longer open, leaving monitor")
			return nil
		}
		if a.ownMint != "" && current.Mint == a.ownMint {
			continue
		}

		d, q, err := a.evaluate(ctx, current, plan)
		if err != nil {
			return err
		}
		if !d.Sell {
			if q.UnrealizedPnlPercent != nil && q.HoldSeconds%holdActivityEvery < int64(HoldPollEvery.Seconds()) {
				a.appendActivity(ctx, domain.ActivityEntry{
					Type:       domain.ActivityHold,
					Symbol:     current.Symbol,
					Message:    fmt.Sprintf("HOLD — PnL %.1f%%, held %dm", *q.UnrealizedPnlPercent, q.HoldSeconds/60),
					PnlPercent: q.UnrealizedPnlPercent,
					HoldMin:    domain.Float(float64(q.HoldSeconds) / 60),
				})
			}
			continue
		}

		a.log.Info().
			Str("symbol", current.Symbol).
			Str("rule", d.Rule).
			Str("reason", d.Reason).
			Int64("held_s", q.HoldSeconds).
			Msg("exit triggered")
		a.appendActivity(ctx, domain.ActivityEntry{
			Type:       domain.ActivitySell,
			Symbol:     current.Symbol,
			Message:    "SELL: " + d.Reason,
			Reason:     d.Reason,
			PnlPercent: q.UnrealizedPnlPercent,
			HoldMin:    domain.Float(float64(q.HoldSeconds) / 60),
		})
		observability.RecordExit(d.Rule)

		_, err = a.sell(ctx, current, d.Reason)
		return err
	}
}

// evaluate quotes the position and runs the exit rules. Without a usable
// price only the time ceilings run. Only a done context is returned as an
// error.
func (a *Agent) evaluate(ctx context.Context, t *domain.TradeRecord, plan domain.HoldPlan) (strategy.Decision, domain.PositionQuote, error) {
	now := a.now()
	price, perr := a.prices.TokenPriceUsd(ctx, t.Mint)
	if ctx.Err() != nil {
		return strategy.Hold, domain.PositionQuote{}, ctx.Err()
	}
	if perr != nil {
		a.log.Debug().Err(perr).Str("mint", t.Mint).Msg("quote unavailable")
	}

	q := ComputeQuote(t, price, a.solUsd, now)
	pos := strategy.Position{Trade: t, Plan: plan, Quote: q}

	rules := a.exit
	if q.UnrealizedPnlPercent == nil {
		rules = a.exit.Ceilings()
	} else if a.stats != nil && a.exit.NeedsMarketStats() {
		s, err := a.stats.MarketStats(ctx, t.Mint)
		if err != nil {
			a.log.Debug().Err(err).Str("mint", t.Mint).Msg("market stats unavailable")
		}
		pos.Stats = s
	}

	d, err := rules.Evaluate(ctx, pos)
	if err != nil {
		if ctx.Err() != nil {
			return strategy.Hold, q, ctx.Err()
		}
		a.log.Warn().Err(err).Str("mint", t.Mint).Msg("exit rule failed")
	}

	a.recordQuote(ctx, t, q, d, now.UnixMilli())
	return d, q, nil
}

func (a *Agent) recordQuote(ctx context.Context, t *domain.TradeRecord, q domain.PositionQuote, d strategy.Decision, ts int64) {
	observability.RecordQuote(q.UnrealizedPnlPercent)
	if a.quotes == nil {
		return
	}
	decision := domain.DecisionHold
	if d.Sell {
		decision = domain.DecisionSell
	}
	err := a.quotes.Insert(ctx, &domain.QuoteSample{
		TradeID:     t.ID,
		Mint:        t.Mint,
		TimestampMs: ts,
		PriceUsd:    q.CurrentPriceUsd,
		PnlPercent:  q.UnrealizedPnlPercent,
		PnlSol:      q.UnrealizedPnlSol,
		HoldSeconds: q.HoldSeconds,
		Decision:    decision,
	})
	if err != nil {
		a.log.Warn().Err(err).Str("trade_id", t.ID).Msg("record quote sample")
	}
}
