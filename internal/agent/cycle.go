package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"lobbi-trader/internal/analysis"
	"lobbi-trader/internal/discovery"
	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/narrative"
	"lobbi-trader/internal/observability"
	"lobbi-trader/internal/storage"
)

// ErrSkip marks a candidate rejected before any capital was committed.
var ErrSkip = errors.New("candidate skipped")

func (a *Agent) defaultPlan() domain.HoldPlan {
	return analysis.PlanHoldDefault(a.filters)
}

func (a *Agent) discoverAndBuy(ctx context.Context) (Outcome, error) {
	a.publish(ctx, domain.IdleState(a.now()))
	if err := a.sleep(ctx, stepPauseIdle); err != nil {
		return OutcomeInterrupted, err
	}
	a.publish(ctx, domain.AgentState{Kind: domain.StateThinking, Message: "Scanning pump.fun for candidates..."})
	a.appendActivity(ctx, domain.ActivityEntry{Type: domain.ActivityThinking, Message: "Scanning pump.fun for candidates..."})
	if err := a.sleep(ctx, stepPauseThink); err != nil {
		return OutcomeInterrupted, err
	}

	exclude, err := a.excludeMints(ctx)
	if err != nil {
		return OutcomeError, err
	}
	candidates, err := a.discoverer.Discover(ctx, a.filters, discovery.Options{
		ExcludeMints: exclude,
		PoolSize:     DiscoveryPool,
	})
	if err != nil {
		return OutcomeInterrupted, err
	}
	if len(candidates) == 0 {
		a.log.Info().Msg("no candidates found")
		a.appendActivity(ctx, domain.ActivityEntry{
			Type:    domain.ActivitySkip,
			Message: "No candidates found (volume/mcap/age filters). Retrying next cycle.",
		})
		a.publish(ctx, domain.IdleState(a.now()))
		return OutcomeNoCandidates, nil
	}

	a.appendActivity(ctx, domain.ActivityEntry{
		Type:    domain.ActivityCandidates,
		Message: candidatesMessage(candidates),
	})
	a.publish(ctx, domain.AgentState{
		Kind:           domain.StateChoosing,
		Message:        fmt.Sprintf("Choosing from %d candidates", len(candidates)),
		CandidateCoins: candidates,
	})
	if err := a.sleep(ctx, stepPauseChoose); err != nil {
		return OutcomeInterrupted, err
	}

	chosen := candidates[a.intN(len(candidates))]
	a.appendActivity(ctx, domain.ActivityEntry{
		Type:    domain.ActivityChosen,
		Symbol:  chosen.Symbol,
		Message: fmt.Sprintf("Chose $%s — %s", chosen.Symbol, chosen.Reason),
	})

	if domain.IsDemoMint(chosen.Mint) || (a.ownMint != "" && chosen.Mint == a.ownMint) {
		a.log.Info().Str("mint", chosen.Mint).Msg("chosen mint is not tradable, idling")
		a.publish(ctx, domain.IdleState(a.now()))
		return OutcomeIdle, nil
	}

	if err := a.revalidate(ctx, &chosen); err != nil {
		if errors.Is(err, ErrSkip) {
			a.skip(ctx, chosen.Symbol, err)
			return OutcomeSkipped, nil
		}
		return OutcomeInterrupted, err
	}

	open, plan, err := a.openPosition(ctx, chosen, 0)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeInterrupted, err
		}
		a.skip(ctx, chosen.Symbol, err)
		return OutcomeSkipped, nil
	}
	if err := a.sleep(ctx, stepPauseBought); err != nil {
		return OutcomeInterrupted, err
	}

	if err := a.holdAndSell(ctx, open, plan); err != nil {
		return OutcomeError, err
	}
	if err := a.afterSale(ctx); err != nil {
		return OutcomeInterrupted, err
	}
	return OutcomeTraded, nil
}

func (a *Agent) skip(ctx context.Context, symbol string, err error) {
	reason := strings.TrimPrefix(err.Error(), ErrSkip.Error()+": ")
	a.log.Info().Str("symbol", symbol).Str("reason", reason).Msg("skipping candidate")
	a.appendActivity(ctx, domain.ActivityEntry{
		Type:    domain.ActivitySkip,
		Symbol:  symbol,
		Message: fmt.Sprintf("Skipped $%s: %s", symbol, reason),
		Reason:  reason,
	})
	a.publish(ctx, domain.IdleState(a.now()))
}

func (a *Agent) excludeMints(ctx context.Context) ([]string, error) {
	recent, err := a.ledger.GetRecentMints(ctx, RecentMintsN)
	if err != nil {
		return nil, fmt.Errorf("recent mints: %w", err)
	}
	exclude := append([]string(nil), recent...)
	if a.ownMint != "" {
		exclude = append(exclude, a.ownMint)
	}
	open, err := a.ledger.GetOpenTrade(ctx)
	if err != nil {
		return nil, fmt.Errorf("get open trade: %w", err)
	}
	if open != nil {
		exclude = append(exclude, open.Mint)
	}
	return exclude, nil
}

func candidatesMessage(cs []domain.Candidate) string {
	n := len(cs)
	if n > 5 {
		n = 5
	}
	syms := make([]string, n)
	for i := range syms {
		syms[i] = cs[i].Symbol
	}
	msg := fmt.Sprintf("Found %d candidates: %s", len(cs), strings.Join(syms, ", "))
	if len(cs) > 5 {
		msg += "…"
	}
	return msg
}

// revalidate re-checks the chosen candidate against the filters right before
// buying. A failure wraps ErrSkip; only a done context returns anything else.
func (a *Agent) revalidate(ctx context.Context, c *domain.Candidate) error {
	f := a.filters

	if a.stats != nil {
		if s, err := a.stats.MarketStats(ctx, c.Mint); err == nil && s != nil {
			mergeStats(c, s)
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	mcap := value(c.McapUsd)
	switch {
	case mcap < f.MinMcapUsd || mcap > f.MaxMcapUsd:
		return fmt.Errorf("%w: mcap $%.0f outside [%.0f, %.0f]", ErrSkip, mcap, f.MinMcapUsd, f.MaxMcapUsd)
	case value(c.VolumeUsd) < f.MinVolumeUsd:
		return fmt.Errorf("%w: volume $%.0f below %.0f", ErrSkip, value(c.VolumeUsd), f.MinVolumeUsd)
	}
	if age := c.AgeMinutes(a.now()); age != nil && *age > f.MaxAgeMinutes {
		return fmt.Errorf("%w: %.0fm old, max %.0fm", ErrSkip, *age, f.MaxAgeMinutes)
	}
	if c.GlobalFeesPaidSol != nil && *c.GlobalFeesPaidSol < f.MinGlobalFeesPaidSol {
		return fmt.Errorf("%w: fees %.3f SOL below %.3f", ErrSkip, *c.GlobalFeesPaidSol, f.MinGlobalFeesPaidSol)
	}

	if domain.IsPumpMint(c.Mint) {
		reserves, err := a.curveReserves(ctx, c.Mint)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil && !a.exec.Demo():
			return fmt.Errorf("%w: bonding curve unreadable: %v", ErrSkip, err)
		case err == nil && reserves < f.MinGlobalFeesPaidSol:
			return fmt.Errorf("%w: curve holds %.3f SOL, need %.3f", ErrSkip, reserves, f.MinGlobalFeesPaidSol)
		case err == nil:
			c.GlobalFeesPaidSol = domain.Float(reserves)
		}
	}
	return nil
}

func (a *Agent) curveReserves(ctx context.Context, mint string) (float64, error) {
	if a.curves == nil {
		return 0, errors.New("no curve reader")
	}
	curve, err := a.curves.FetchBondingCurve(ctx, mint)
	if err != nil {
		return 0, err
	}
	return curve.RealSolReservesSol(), nil
}

func mergeStats(c *domain.Candidate, s *domain.MarketStats) {
	if s.McapUsd != nil {
		c.McapUsd = s.McapUsd
	}
	if s.VolumeUsd != nil {
		c.VolumeUsd = s.VolumeUsd
	}
	if s.LiquidityUsd != nil {
		c.LiquidityUsd = s.LiquidityUsd
	}
	if c.PairCreatedAtMs == nil && s.PairCreatedAtMs != nil {
		c.PairCreatedAtMs = s.PairCreatedAtMs
	}
}

// positionSize draws a size in [min, max] and caps it by the wallet share.
func (a *Agent) positionSize(ctx context.Context) (float64, error) {
	f := a.filters
	size := f.MinPositionSol + a.float64()*(f.MaxPositionSol-f.MinPositionSol)

	balance, err := a.exec.Balance(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("wallet balance unavailable, sizing without cap")
	}
	if balance != nil {
		size = math.Min(size, *balance*f.MaxPositionPercent/100)
	}
	if size < MinPositionSol {
		return 0, fmt.Errorf("%w: position %.4f SOL below %.3f minimum", ErrSkip, size, MinPositionSol)
	}
	return size, nil
}

// holderStats is best effort.
func (a *Agent) holderStats(ctx context.Context, mint string) *domain.HolderStats {
	if a.holders == nil {
		return nil
	}
	h, err := a.holders.HolderStats(ctx, mint)
	if err != nil {
		a.log.Debug().Err(err).Str("mint", mint).Msg("holder stats unavailable")
		return nil
	}
	return h
}

// openPosition buys c and records the open trade. solAmount <= 0 draws a size
// from the filters. It refuses when a position is already open and wraps
// ErrSkip when the size is too small. The caller holds the cycle lock.
func (a *Agent) openPosition(ctx context.Context, c domain.Candidate, solAmount float64) (*domain.TradeRecord, domain.HoldPlan, error) {
	if existing, err := a.ledger.GetOpenTrade(ctx); err != nil {
		return nil, domain.HoldPlan{}, fmt.Errorf("get open trade: %w", err)
	} else if existing != nil {
		return nil, domain.HoldPlan{}, fmt.Errorf("%w: %s", storage.ErrOpenPositionExists, existing.Symbol)
	}

	if solAmount <= 0 {
		size, err := a.positionSize(ctx)
		if err != nil {
			return nil, domain.HoldPlan{}, err
		}
		solAmount = size
	}

	fill, err := a.exec.Buy(ctx, c, solAmount, a.filters)
	if err != nil {
		return nil, domain.HoldPlan{}, fmt.Errorf("buy %s: %w", c.Symbol, err)
	}
	buyTime := a.now()

	mcapAtBuy := c.McapUsd
	volAtBuy := c.VolumeUsd
	if a.stats != nil {
		if s, err := a.stats.MarketStats(ctx, c.Mint); err == nil && s != nil {
			if s.McapUsd != nil {
				mcapAtBuy = s.McapUsd
			}
			if s.VolumeUsd != nil {
				volAtBuy = s.VolumeUsd
			}
		}
	}
	if mcapAtBuy == nil {
		mcapAtBuy = a.lookupMcap(ctx, c.Mint)
	}

	var age *float64
	if m := c.AgeMinutes(buyTime); m != nil {
		age = domain.Float(math.Round(*m))
	}

	holders := a.holderStats(ctx, c.Mint)
	plan := analysis.PlanHold(c, a.filters, holders)
	why := narrative.BuyWhy(c, plan, holders, age)

	if res, err := a.ledger.ClearStaleOpenTrades(ctx); err != nil {
		a.log.Error().Err(err).Msg("clear stale open trades")
	} else if res.Deduplicated > 0 || res.Removed > 0 {
		a.log.Info().Int("deduplicated", res.Deduplicated).Int("removed", res.Removed).Msg("cleared stale open trades")
	}

	rec, err := a.ledger.RecordOpenBuy(ctx, domain.OpenBuy{
		Mint:            c.Mint,
		Symbol:          c.Symbol,
		Name:            c.Name,
		Why:             why,
		BuySol:          solAmount,
		BuyTokenAmount:  fill.TokenAmount,
		BuyTime:         buyTime,
		McapUsd:         mcapAtBuy,
		VolumeAtBuyUsd:  volAtBuy,
		AgeMinutesAtBuy: age,
		TxBuy:           fill.Tx,
	})
	if errors.Is(err, storage.ErrDuplicateKey) && rec == nil {
		rec, err = a.ledger.GetOpenTrade(ctx)
		if err == nil && rec == nil {
			err = fmt.Errorf("%w: duplicate buy %s has no open record", storage.ErrNotFound, fill.Tx)
		}
	}
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		// The swap went through but the ledger refused it; this needs a human.
		a.log.Error().Err(err).Str("mint", c.Mint).Str("tx", fill.Tx).Msg("bought but could not record the position")
		return nil, domain.HoldPlan{}, fmt.Errorf("record buy: %w", err)
	}
	observability.RecordBuy()

	a.appendActivity(ctx, domain.ActivityEntry{
		Type:    domain.ActivityBought,
		Symbol:  c.Symbol,
		Message: fmt.Sprintf("Bought $%s — %s…", c.Symbol, narrative.Truncate(why, 120)),
		Reason:  why,
	})
	var holderCount *int
	if holders != nil {
		holderCount = &holders.HolderCount
	}
	a.publishBought(ctx, rec, holderCount)
	a.notifyf(ctx, "Bought $%s for %s SOL\n%s", c.Symbol, formatSol(solAmount), why)

	a.log.Info().
		Str("symbol", c.Symbol).
		Str("mint", c.Mint).
		Float64("sol", solAmount).
		Float64("tokens", fill.TokenAmount).
		Str("tx", fill.Tx).
		Msg("bought")
	return rec, plan, nil
}

func (a *Agent) lookupMcap(ctx context.Context, mint string) *float64 {
	if a.mcap == nil {
		return nil
	}
	m, err := a.mcap.TokenMcapUsd(ctx, mint)
	if err != nil {
		a.log.Debug().Err(err).Str("mint", mint).Msg("mcap lookup failed")
		return nil
	}
	return m
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
