package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"lobbi-trader/internal/discovery"
	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/storage"
)

// Manual operation errors.
var (
	ErrBusy       = errors.New("a trading cycle holds the lock")
	ErrNoPosition = errors.New("no open position")
	ErrOwnToken   = errors.New("refusing to trade the own token")
)

// Manual operation defaults.
const (
	DefaultManualBuySol = 0.1
	ManualSellReason    = "Agent exit"
	EnrichedCandidates  = 6
)

// BuyRequest is a manual buy order.
type BuyRequest struct {
	Mint      string   `json:"mint"`
	Symbol    string   `json:"symbol,omitempty"`
	Name      string   `json:"name,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	AmountSol *float64 `json:"amountSol,omitempty"`
}

// PositionView is the open trade with a live quote.
type PositionView struct {
	Trade *domain.TradeRecord  `json:"trade"`
	Quote domain.PositionQuote `json:"quote"`
}

// CandidateView is a discovery result, holder stats attached for the top few.
type CandidateView struct {
	domain.Candidate
	Holders *domain.HolderStats `json:"holders,omitempty"`
}

// Desk runs manual operations with the agent's buy and sell paths.
type Desk struct {
	a *Agent
}

// NewDesk creates a Desk over a.
func NewDesk(a *Agent) *Desk {
	return &Desk{a: a}
}

// Buy opens a position in req.Mint. It takes the cycle lock and returns
// ErrBusy when a cycle is running.
func (d *Desk) Buy(ctx context.Context, req BuyRequest) (*domain.TradeRecord, error) {
	a := d.a
	req.Mint = strings.TrimSpace(req.Mint)
	if req.Mint == "" {
		return nil, fmt.Errorf("%w: mint required", storage.ErrInvalidInput)
	}
	if a.ownMint != "" && req.Mint == a.ownMint {
		return nil, ErrOwnToken
	}

	ok, err := a.lock.TryAcquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	defer a.releaseLock(ctx)

	amount := DefaultManualBuySol
	if req.AmountSol != nil && *req.AmountSol > 0 {
		amount = *req.AmountSol
	}
	amount = math.Min(amount, a.filters.MaxPositionSol)
	if amount < MinPositionSol {
		return nil, fmt.Errorf("%w: amount %.4f SOL below %.3f minimum", storage.ErrInvalidInput, amount, MinPositionSol)
	}

	c := domain.Candidate{Mint: req.Mint, Symbol: req.Symbol, Name: req.Name, Reason: req.Reason}
	if c.Symbol == "" {
		c.Symbol = shortMint(req.Mint)
	}
	if c.Name == "" {
		c.Name = c.Symbol
	}
	if c.Reason == "" {
		c.Reason = "Manual buy"
	}
	if a.stats != nil {
		if s, err := a.stats.MarketStats(ctx, c.Mint); err == nil && s != nil {
			mergeStats(&c, s)
		}
	}

	rec, _, err := a.openPosition(ctx, c, amount)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Sell closes the open position. It does not take the cycle lock: a running
// monitor sees the closed record on its next poll and stands down.
func (d *Desk) Sell(ctx context.Context) (*domain.TradeRecord, error) {
	a := d.a
	open, err := a.ledger.GetOpenTrade(ctx)
	if err != nil {
		return nil, fmt.Errorf("get open trade: %w", err)
	}
	if open == nil {
		return nil, ErrNoPosition
	}
	a.appendActivity(ctx, domain.ActivityEntry{
		Type:    domain.ActivitySell,
		Symbol:  open.Symbol,
		Message: "SELL: " + ManualSellReason,
		Reason:  ManualSellReason,
	})
	closed, err := a.sell(ctx, open, ManualSellReason)
	if err != nil {
		return nil, err
	}
	if closed == nil {
		return nil, ErrNoPosition
	}
	a.exit.Forget(closed.ID)
	return closed, nil
}

// Position returns the open trade with a live quote, or nil when flat.
func (d *Desk) Position(ctx context.Context) (*PositionView, error) {
	a := d.a
	open, err := a.ledger.GetOpenTrade(ctx)
	if err != nil {
		return nil, fmt.Errorf("get open trade: %w", err)
	}
	if open == nil {
		return nil, nil
	}
	price, err := a.prices.TokenPriceUsd(ctx, open.Mint)
	if err != nil {
		a.log.Debug().Err(err).Str("mint", open.Mint).Msg("quote unavailable")
	}
	return &PositionView{Trade: open, Quote: ComputeQuote(open, price, a.solUsd, a.now())}, nil
}

// Candidates runs discovery without buying and attaches holder stats to the
// first EnrichedCandidates results.
func (d *Desk) Candidates(ctx context.Context) ([]CandidateView, error) {
	a := d.a
	exclude, err := a.excludeMints(ctx)
	if err != nil {
		return nil, err
	}
	cs, err := a.discoverer.Discover(ctx, a.filters, discovery.Options{
		ExcludeMints: exclude,
		PoolSize:     DiscoveryPool,
	})
	if err != nil {
		return nil, err
	}
	out := make([]CandidateView, len(cs))
	for i, c := range cs {
		out[i] = CandidateView{Candidate: c}
		if i < EnrichedCandidates {
			out[i].Holders = a.holderStats(ctx, c.Mint)
		}
	}
	return out, nil
}

func (a *Agent) releaseLock(ctx context.Context) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := a.lock.Release(rctx); err != nil {
		a.log.Warn().Err(err).Msg("release cycle lock")
	}
}

func shortMint(mint string) string {
	if len(mint) <= 6 {
		return strings.ToUpper(mint)
	}
	return strings.ToUpper(mint[:6])
}
