package executor

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/idhash"
	"lobbi-trader/internal/solana"
)

// demoTokensPerSolMicro fixes the simulated fill rate: tokens = sol * 1e6 * 7500.
const demoTokensPerSolMicro = 7500

// Demo simulates fills deterministically. Identical inputs give identical
// transaction ids, so a retried buy records as a duplicate.
type Demo struct{}

// NewDemo creates a demo executor.
func NewDemo() *Demo { return &Demo{} }

var _ Executor = (*Demo)(nil)

// Buy returns a simulated fill.
func (Demo) Buy(ctx context.Context, c domain.Candidate, solAmount float64, _ domain.Filters) (BuyFill, error) {
	if err := ctx.Err(); err != nil {
		return BuyFill{}, err
	}
	if solAmount <= 0 {
		return BuyFill{}, fmt.Errorf("buy amount must be positive")
	}
	lamports := solana.SolToLamports(solAmount)
	return BuyFill{
		TokenAmount: math.Floor(solAmount * 1e6 * demoTokensPerSolMicro),
		Tx:          "demo_buy_" + demoHash(c.Mint, strconv.FormatUint(lamports, 10)),
	}, nil
}

// Sell returns a simulated sell with unknown proceeds.
func (Demo) Sell(ctx context.Context, mint string, tokenAmount float64, _ domain.Filters) (SellResult, error) {
	if err := ctx.Err(); err != nil {
		return SellResult{}, err
	}
	return SellResult{
		Tx: "demo_sell_" + demoHash(mint, strconv.FormatFloat(tokenAmount, 'f', -1, 64)),
	}, nil
}

// Balance is unknown in demo mode.
func (Demo) Balance(context.Context) (*float64, error) { return nil, nil }

// Demo reports true.
func (Demo) Demo() bool { return true }

func demoHash(parts ...string) string {
	return idhash.Short(16, parts...)
}
