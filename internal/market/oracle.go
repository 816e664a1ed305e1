package market

import (
	"context"

	"lobbi-trader/internal/domain"
)

// PriceOracle returns a token's USD price. A nil price with a nil error means
// the source has no quote.
type PriceOracle interface {
	TokenPriceUsd(ctx context.Context, mint string) (*float64, error)
}

// McapOracle returns a token's market cap in USD.
type McapOracle interface {
	TokenMcapUsd(ctx context.Context, mint string) (*float64, error)
}

// StatsOracle returns a market snapshot.
type StatsOracle interface {
	MarketStats(ctx context.Context, mint string) (*domain.MarketStats, error)
}

// HolderService returns holder distribution stats.
type HolderService interface {
	HolderStats(ctx context.Context, mint string) (*domain.HolderStats, error)
}

// PriceChain asks each oracle in order and returns the first positive price.
// Errors from earlier sources are swallowed when a later one answers.
type PriceChain []PriceOracle

// TokenPriceUsd implements PriceOracle.
func (c PriceChain) TokenPriceUsd(ctx context.Context, mint string) (*float64, error) {
	var lastErr error
	for _, o := range c {
		if o == nil {
			continue
		}
		p, err := o.TokenPriceUsd(ctx, mint)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if p != nil && *p > 0 {
			return p, nil
		}
	}
	return nil, lastErr
}

var (
	_ PriceOracle   = (*DexScreener)(nil)
	_ McapOracle    = (*DexScreener)(nil)
	_ StatsOracle   = (*DexScreener)(nil)
	_ PriceOracle   = (*Birdeye)(nil)
	_ HolderService = (*Birdeye)(nil)
	_ PriceOracle   = PriceChain(nil)
)
