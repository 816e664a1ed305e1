package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/pumpportal"
	"lobbi-trader/internal/solana"
)

// pumpTokenDecimals is the decimals of every pump.fun mint.
const pumpTokenDecimals = 6

// TransactionSource builds unsigned swap transactions.
type TransactionSource interface {
	Transaction(ctx context.Context, req pumpportal.TradeRequest) ([]byte, error)
}

// Live signs PumpPortal transactions with the wallet and submits them over RPC.
type Live struct {
	wallet *solana.Wallet
	rpc    solana.RPCClient
	trades TransactionSource
	log    zerolog.Logger
}

// NewLive creates a live executor. Returns ErrNoWallet when wallet or rpc is nil.
func NewLive(wallet *solana.Wallet, rpc solana.RPCClient, trades TransactionSource, log zerolog.Logger) (*Live, error) {
	if wallet == nil || rpc == nil {
		return nil, ErrNoWallet
	}
	return &Live{
		wallet: wallet,
		rpc:    rpc,
		trades: trades,
		log:    log.With().Str("component", "executor").Str("wallet", wallet.PublicKey()).Logger(),
	}, nil
}

var _ Executor = (*Live)(nil)

// Buy spends solAmount on c.Mint.
func (l *Live) Buy(ctx context.Context, c domain.Candidate, solAmount float64, f domain.Filters) (BuyFill, error) {
	lamports := solana.SolToLamports(solAmount)
	if lamports == 0 {
		return BuyFill{}, fmt.Errorf("buy amount must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	sig, err := l.submit(ctx, pumpportal.TradeRequest{
		Action:           pumpportal.ActionBuy,
		Mint:             c.Mint,
		Amount:           strconv.FormatUint(lamports, 10),
		DenominatedInSol: true,
		SlippagePercent:  f.SlippagePercent,
		PriorityFeeSol:   f.PriorityFeeSol,
	})
	if err != nil {
		return BuyFill{}, err
	}

	fill := BuyFill{TokenAmount: l.estimateTokens(ctx, c.Mint, lamports), Tx: sig}
	l.log.Info().Str("mint", c.Mint).Float64("sol", solAmount).Str("tx", sig).Msg("buy submitted")
	return fill, nil
}

// Sell sells the entire balance of mint.
func (l *Live) Sell(ctx context.Context, mint string, _ float64, f domain.Filters) (SellResult, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	sig, err := l.submit(ctx, pumpportal.TradeRequest{
		Action:           pumpportal.ActionSell,
		Mint:             mint,
		Amount:           "100%",
		DenominatedInSol: false,
		SlippagePercent:  f.SlippagePercent,
		PriorityFeeSol:   f.PriorityFeeSol,
	})
	if err != nil {
		return SellResult{}, err
	}
	l.log.Info().Str("mint", mint).Str("tx", sig).Msg("sell submitted")
	return SellResult{Tx: sig}, nil
}

func (l *Live) submit(ctx context.Context, req pumpportal.TradeRequest) (string, error) {
	req.PublicKey = l.wallet.PublicKey()

	unsigned, err := l.trades.Transaction(ctx, req)
	if err != nil {
		return "", err
	}
	signed, err := l.wallet.SignTransaction(unsigned)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", req.Action, err)
	}
	sig, err := l.rpc.SendTransaction(ctx, signed)
	if err != nil {
		return "", fmt.Errorf("send %s: %w", req.Action, err)
	}
	return sig, nil
}

// estimateTokens quotes the fill against the bonding curve. Graduated or
// unreadable curves fall back to a flat rate; the ledger amount is informational.
func (l *Live) estimateTokens(ctx context.Context, mint string, lamports uint64) float64 {
	bc, err := solana.FetchBondingCurve(ctx, l.rpc, mint)
	if err == nil && bc.VirtualSolReserves > 0 && !bc.Complete {
		raw := float64(lamports) * float64(bc.VirtualTokenReserves) / float64(bc.VirtualSolReserves+lamports)
		return math.Floor(raw / math.Pow10(pumpTokenDecimals))
	}
	if err != nil && !errors.Is(err, solana.ErrAccountNotFound) {
		l.log.Debug().Err(err).Str("mint", mint).Msg("curve quote unavailable")
	}
	return math.Floor(float64(lamports) * 1000)
}

// Balance returns the wallet balance in SOL.
func (l *Live) Balance(ctx context.Context) (*float64, error) {
	lamports, err := l.rpc.GetBalance(ctx, l.wallet.PublicKey())
	if err != nil {
		return nil, err
	}
	sol := solana.LamportsToSol(lamports)
	return &sol, nil
}

// Demo reports false.
func (l *Live) Demo() bool { return false }
