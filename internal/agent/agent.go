// Package agent runs the single-position trading cycle.
//
// A cycle takes the shared lock, resumes an open position if the ledger has
// one, otherwise discovers, validates and buys a candidate, then monitors it
// until an exit rule fires and records the sale. At most one position is open
// at any time.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lobbi-trader/internal/discovery"
	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/executor"
	"lobbi-trader/internal/market"
	"lobbi-trader/internal/notify"
	"lobbi-trader/internal/observability"
	"lobbi-trader/internal/solana"
	"lobbi-trader/internal/storage"
	"lobbi-trader/internal/strategy"
)

// Timing of the cycle.
const (
	LockBusyDelay   = 30 * time.Second
	HoldPollEvery   = 5 * time.Second
	ProceedsGrace   = 5 * time.Second
	ErrorRetryDelay = 5 * time.Second
	RecentMintsN    = 20
	DiscoveryPool   = discovery.DefaultPoolSize
	MinPositionSol  = 0.001
	DefaultSolUsd   = 76.6
	releaseTimeout  = 5 * time.Second
	stepPauseIdle   = 2 * time.Second
	stepPauseThink  = 3 * time.Second
	stepPauseChoose = 1 * time.Second
	stepPauseBought = 2 * time.Second
)

// Outcome is how a cycle ended.
type Outcome string

// Cycle outcomes.
const (
	OutcomeLockBusy     Outcome = "lock_busy"
	OutcomeResumed      Outcome = "resumed"
	OutcomeTraded       Outcome = "traded"
	OutcomeNoCandidates Outcome = "no_candidates"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeIdle         Outcome = "idle"
	OutcomeInterrupted  Outcome = "interrupted"
	OutcomeError        Outcome = "error"
)

// Discoverer finds buy candidates.
type Discoverer interface {
	Discover(ctx context.Context, f domain.Filters, opts discovery.Options) ([]domain.Candidate, error)
}

// CurveReader reads a pump.fun bonding curve.
type CurveReader interface {
	FetchBondingCurve(ctx context.Context, mint string) (*solana.BondingCurve, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Options wires an Agent. Ledger, State, Lock, Activity, Discoverer,
// Executor, Prices and Exit are required.
type Options struct {
	Ledger   storage.TradeLedger
	State    storage.StateStore
	Lock     storage.Lock
	Activity storage.ActivityLog
	Quotes   storage.QuoteStore // optional

	Discoverer Discoverer
	Executor   executor.Executor
	Prices     market.PriceOracle
	Stats      market.StatsOracle   // optional
	Mcap       market.McapOracle    // optional
	Holders    market.HolderService // optional
	Curves     CurveReader          // optional
	Notifier   notify.Notifier      // optional

	Exit    strategy.Chain
	Filters domain.Filters

	OwnTokenMint string
	SolPriceUsd  float64

	Now   func() time.Time
	Sleep Sleeper
	Rand  *rand.Rand
	Log   zerolog.Logger
}

// Agent is the trading cycle state machine.
type Agent struct {
	ledger   storage.TradeLedger
	state    storage.StateStore
	lock     storage.Lock
	activity storage.ActivityLog
	quotes   storage.QuoteStore

	discoverer Discoverer
	exec       executor.Executor
	prices     market.PriceOracle
	stats      market.StatsOracle
	mcap       market.McapOracle
	holders    market.HolderService
	curves     CurveReader
	notifier   notify.Notifier

	exit    strategy.Chain
	filters domain.Filters

	ownMint string
	solUsd  float64

	now    func() time.Time
	sleepf Sleeper
	randMu sync.Mutex
	rand   *rand.Rand
	log    zerolog.Logger
}

// New creates an Agent.
func New(opts Options) (*Agent, error) {
	switch {
	case opts.Ledger == nil, opts.State == nil, opts.Lock == nil, opts.Activity == nil:
		return nil, errors.New("agent: ledger, state, lock and activity log are required")
	case opts.Discoverer == nil || opts.Executor == nil || opts.Prices == nil:
		return nil, errors.New("agent: discoverer, executor and price oracle are required")
	case len(opts.Exit) == 0:
		return nil, errors.New("agent: exit rules are required")
	}
	if err := opts.Filters.Validate(); err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}

	a := &Agent{
		ledger:     opts.Ledger,
		state:      opts.State,
		lock:       opts.Lock,
		activity:   opts.Activity,
		quotes:     opts.Quotes,
		discoverer: opts.Discoverer,
		exec:       opts.Executor,
		prices:     opts.Prices,
		stats:      opts.Stats,
		mcap:       opts.Mcap,
		holders:    opts.Holders,
		curves:     opts.Curves,
		notifier:   opts.Notifier,
		exit:       opts.Exit,
		filters:    opts.Filters,
		ownMint:    opts.OwnTokenMint,
		solUsd:     opts.SolPriceUsd,
		now:        opts.Now,
		sleepf:     opts.Sleep,
		rand:       opts.Rand,
		log:        opts.Log.With().Str("component", "agent").Logger(),
	}
	if a.notifier == nil {
		a.notifier = notify.Noop{}
	}
	if a.solUsd <= 0 {
		a.solUsd = DefaultSolUsd
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.sleepf == nil {
		a.sleepf = Sleep
	}
	if a.rand == nil {
		a.rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x70bb1))
	}
	return a, nil
}

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (a *Agent) sleep(ctx context.Context, d time.Duration) error {
	return a.sleepf(ctx, d)
}

func (a *Agent) float64() float64 {
	a.randMu.Lock()
	defer a.randMu.Unlock()
	return a.rand.Float64()
}

func (a *Agent) intN(n int) int {
	a.randMu.Lock()
	defer a.randMu.Unlock()
	return a.rand.IntN(n)
}

// Run loops cycles until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info().
		Bool("demo", a.exec.Demo()).
		Dur("loop_delay", a.filters.LoopDelay()).
		Float64("hold_min_s", a.filters.HoldMinSeconds).
		Strs("exit_rules", a.exit.IDs()).
		Msg("agent starting, one position at a time")
	if a.exit.HardCeilingOnly() {
		a.log.Info().Msg("no advisory service configured, holding to hard ceiling only (degraded)")
	}

	a.ClearStale(ctx)

	open, err := a.ledger.GetOpenTrade(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("read open trade at startup")
	}
	if open == nil {
		a.publish(ctx, domain.IdleState(a.now()))
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var pause time.Duration
		switch a.RunCycle(ctx) {
		case OutcomeNoCandidates, OutcomeSkipped, OutcomeIdle:
			pause = a.filters.LoopDelay()
		case OutcomeError:
			pause = ErrorRetryDelay
		}
		if pause > 0 {
			if err := a.sleep(ctx, pause); err != nil {
				return err
			}
		}
	}
}

// ClearStale merges duplicate open records and drops orphaned ones. Run calls
// it once before the first cycle. It is skipped while another instance holds
// the cycle lock.
func (a *Agent) ClearStale(ctx context.Context) domain.ClearResult {
	ok, err := a.lock.TryAcquire(ctx)
	if err != nil || !ok {
		a.log.Info().Err(err).Msg("lock busy at startup, stale clear skipped")
		return domain.ClearResult{}
	}
	defer a.releaseLock(ctx)

	res, err := a.ledger.ClearStaleOpenTrades(ctx)
	switch {
	case err != nil:
		a.log.Error().Err(err).Msg("clear stale open trades")
	case res.Deduplicated > 0 || res.Removed > 0:
		a.log.Info().Int("deduplicated", res.Deduplicated).Int("removed", res.Removed).Msg("cleared stale open trades")
	}
	return res
}

// RunCycle runs one cycle under the shared lock. It never panics: a panic or
// error forces the published state back to idle.
func (a *Agent) RunCycle(ctx context.Context) (out Outcome) {
	start := a.now()
	defer func() {
		observability.RecordCycle(string(out), a.now().Sub(start))
	}()

	ok, err := a.lock.TryAcquire(ctx)
	if err != nil || !ok {
		observability.RecordLockBusy()
		ev := a.log.Info()
		if err != nil {
			ev = a.log.Warn().Err(err)
		}
		ev.Dur("retry_in", LockBusyDelay).Msg("another instance holds the lock or a cycle is running, skipping")
		_ = a.sleep(ctx, LockBusyDelay)
		return OutcomeLockBusy
	}
	defer a.releaseLock(ctx)
	defer func() {
		if r := recover(); r != nil {
			observability.RecordPanic()
			a.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("cycle panicked")
			a.forceIdle(ctx)
			out = OutcomeError
		}
	}()

	out, err = a.cycle(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		a.log.Info().Err(err).Msg("cycle interrupted")
		out = OutcomeInterrupted
	default:
		a.log.Error().Err(err).Msg("cycle error")
		a.forceIdle(ctx)
		out = OutcomeError
	}
	return out
}

func (a *Agent) forceIdle(ctx context.Context) {
	a.publish(context.WithoutCancel(ctx), domain.IdleState(a.now()))
}

// cycle is one pass: resume, or discover and buy, then hold and sell.
func (a *Agent) cycle(ctx context.Context) (Outcome, error) {
	open, err := a.ledger.GetOpenTrade(ctx)
	if err != nil {
		return OutcomeError, fmt.Errorf("get open trade: %w", err)
	}
	if open != nil {
		return a.resume(ctx, open)
	}
	return a.discoverAndBuy(ctx)
}

func (a *Agent) resume(ctx context.Context, open *domain.TradeRecord) (Outcome, error) {
	a.log.Info().Str("symbol", open.Symbol).Str("mint", open.Mint).Msg("resuming open position")
	a.appendActivity(ctx, domain.ActivityEntry{
		Type:    domain.ActivityIdle,
		Symbol:  open.Symbol,
		Message: fmt.Sprintf("Resuming: holding $%s", open.Symbol),
	})
	a.publishBought(ctx, open, nil)

	if err := a.holdAndSell(ctx, open, a.defaultPlan()); err != nil {
		return OutcomeError, err
	}
	if err := a.afterSale(ctx); err != nil {
		return OutcomeInterrupted, err
	}
	return OutcomeResumed, nil
}

// afterSale waits out the loop delay while still holding the lock.
func (a *Agent) afterSale(ctx context.Context) error {
	delay := a.filters.LoopDelay()
	a.appendActivity(ctx, domain.ActivityEntry{
		Type:    domain.ActivityIdle,
		Message: fmt.Sprintf("Sold. Waiting %ds before next scan.", int64(delay/time.Second)),
	})
	a.publish(ctx, domain.IdleState(a.now()))
	if delay <= 0 {
		return nil
	}
	return a.sleep(ctx, delay)
}
