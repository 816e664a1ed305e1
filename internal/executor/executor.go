// Package executor submits buys and sells, live through PumpPortal or
// simulated in demo mode.
package executor

import (
	"context"
	"errors"
	"time"

	"lobbi-trader/internal/domain"
)

// ErrNoWallet is returned when live execution is requested without a wallet or RPC.
var ErrNoWallet = errors.New("no wallet configured")

// Timeout bounds a single buy or sell, transaction build through submission.
const Timeout = 30 * time.Second

// BuyFill is the result of a buy.
type BuyFill struct {
	TokenAmount float64
	Tx          string
}

// SellResult is the result of a sell. SolReceived is 0 when the executor
// cannot observe proceeds; callers reconcile it.
type SellResult struct {
	SolReceived float64
	Tx          string
}

// Executor performs swaps for the single wallet.
type Executor interface {
	Buy(ctx context.Context, c domain.Candidate, solAmount float64, f domain.Filters) (BuyFill, error)
	Sell(ctx context.Context, mint string, tokenAmount float64, f domain.Filters) (SellResult, error)
	// Balance returns wallet SOL, or nil when unknown.
	Balance(ctx context.Context) (*float64, error)
	// Demo reports simulated execution.
	Demo() bool
}
