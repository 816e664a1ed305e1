package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"lobbi-trader/internal/backtest"
	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/metrics"
	"lobbi-trader/internal/storage"
	"lobbi-trader/internal/strategy"
	"lobbi-trader/internal/verification"
)

// ErrNoQuoteStore is returned when a replay is requested without quotes.
var ErrNoQuoteStore = errors.New("replay requested without a quote store")

// Options selects what a report covers.
type Options struct {
	// IncludeDemo keeps simulated demo-mint trades.
	IncludeDemo bool
	// Replays maps an exit mode name to the chain replayed under it.
	// Needs a quote store.
	Replays map[string]strategy.Chain
	// Plan is the hold plan replays run with.
	Plan domain.HoldPlan
}

// Generator builds reports from the ledger.
type Generator struct {
	ledger storage.TradeLedger
	quotes storage.QuoteStore
	clock  func() time.Time
}

// NewGenerator creates a generator. quotes may be nil when no replay is asked for.
func NewGenerator(ledger storage.TradeLedger, quotes storage.QuoteStore, clock func() time.Time) *Generator {
	if clock == nil {
		clock = time.Now
	}
	return &Generator{ledger: ledger, quotes: quotes, clock: clock}
}

// Generate reads the ledger and assembles a report.
func (g *Generator) Generate(ctx context.Context, opts Options) (*Report, error) {
	all, err := g.ledger.ListTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	trades := make([]*domain.TradeRecord, 0, len(all))
	for _, t := range all {
		if opts.IncludeDemo || !domain.IsDemoMint(t.Mint) {
			trades = append(trades, t)
		}
	}

	r := &Report{
		GeneratedAt: g.clock().UTC(),
		Demo:        opts.IncludeDemo,
		Overall:     metrics.Compute(trades),
		ByExit:      metrics.ByExit(trades),
		ByDay:       metrics.GroupBy(trades, sellDay),
		Trades:      metrics.Closed(trades),
		Integrity:   verification.Verify(all),
	}
	for _, t := range trades {
		if t.IsOpen() {
			r.OpenTrade = t
			break
		}
	}

	if len(opts.Replays) == 0 {
		return r, nil
	}
	if g.quotes == nil {
		return nil, ErrNoQuoteStore
	}
	modes := make([]string, 0, len(opts.Replays))
	for m := range opts.Replays {
		modes = append(modes, m)
	}
	sort.Strings(modes)

	runner := backtest.NewRunner(g.quotes, opts.Plan)
	for _, mode := range modes {
		chain := opts.Replays[mode]
		results, err := runner.RunAll(ctx, trades, chain)
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", mode, err)
		}
		r.Replays = append(r.Replays, ReplaySection{
			Mode:       mode,
			Chain:      chain.IDs(),
			Comparison: backtest.Compare(results),
			Results:    results,
		})
	}
	return r, nil
}

func sellDay(t *domain.TradeRecord) string {
	return t.SellTime().UTC().Format("2006-01-02")
}
