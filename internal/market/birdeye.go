package market

import (
	"context"
	"net/http"
	"strconv"

	"lobbi-trader/internal/domain"
)

const birdeyeBase = "https://public-api.birdeye.so"

// BirdeyeToken is one row of the Birdeye token list.
type BirdeyeToken struct {
	Address   string   `json:"address"`
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name"`
	Mcap      *float64 `json:"mc"`
	Volume24h *float64 `json:"v24hUSD"`
	Liquidity *float64 `json:"liquidity"`
}

// TokenListParams selects and sorts the token list.
type TokenListParams struct {
	SortBy       string // v24hUSD, mc, v24hChangePercent
	SortType     string // asc, desc
	Offset       int
	Limit        int // capped at 50
	MinLiquidity *float64
}

// Birdeye is a client for the Birdeye public API.
// Without an API key every call returns empty results.
type Birdeye struct {
	BaseURL string
	apiKey  string
	f       fetcher
}

// BirdeyeOption configures a Birdeye client.
type BirdeyeOption func(*Birdeye)

// WithBirdeyeBaseURL overrides the API base, for tests.
func WithBirdeyeBaseURL(u string) BirdeyeOption {
	return func(b *Birdeye) { b.BaseURL = u }
}

// WithBirdeyeHTTPClient sets the HTTP client.
func WithBirdeyeHTTPClient(c *http.Client) BirdeyeOption {
	return func(b *Birdeye) { b.f.http = c }
}

// NewBirdeye creates a client.
func NewBirdeye(apiKey string, opts ...BirdeyeOption) *Birdeye {
	b := &Birdeye{
		BaseURL: birdeyeBase,
		apiKey:  apiKey,
		f:       newFetcher("birdeye", nil, nil, 0),
	}
	b.f.headers = map[string]string{
		"x-chain":   "solana",
		"X-API-KEY": apiKey,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Enabled reports whether an API key is configured.
func (b *Birdeye) Enabled() bool {
	return b != nil && b.apiKey != ""
}

// TokenList returns tokens matching p.
func (b *Birdeye) TokenList(ctx context.Context, p TokenListParams) ([]BirdeyeToken, error) {
	if !b.Enabled() {
		return nil, nil
	}
	if p.SortBy == "" {
		p.SortBy = "v24hUSD"
	}
	if p.SortType == "" {
		p.SortType = "desc"
	}
	if p.Limit <= 0 || p.Limit > 50 {
		p.Limit = 50
	}
	q := map[string]string{
		"sort_by":   p.SortBy,
		"sort_type": p.SortType,
		"offset":    strconv.Itoa(p.Offset),
		"limit":     strconv.Itoa(p.Limit),
	}
	if p.MinLiquidity != nil {
		q["min_liquidity"] = strconv.FormatFloat(*p.MinLiquidity, 'f', -1, 64)
	}
	u, err := buildURL(b.BaseURL, birdeyeBase, "/defi/tokenlist", q)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			Tokens []BirdeyeToken `json:"tokens"`
		} `json:"data"`
	}
	if err := b.f.getJSON(ctx, "tokenlist", u, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Tokens, nil
}

// TokenPriceUsd returns the Birdeye spot price, or nil.
func (b *Birdeye) TokenPriceUsd(ctx context.Context, mint string) (*float64, error) {
	if !b.Enabled() {
		return nil, nil
	}
	u, err := buildURL(b.BaseURL, birdeyeBase, "/defi/price", map[string]string{"address": mint})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Data struct {
			Value *float64 `json:"value"`
		} `json:"data"`
	}
	if err := b.f.getJSON(ctx, "price", u, &resp); err != nil {
		return nil, err
	}
	if resp.Data.Value == nil || *resp.Data.Value <= 0 {
		return nil, nil
	}
	return resp.Data.Value, nil
}

// HolderStats returns holder count and top-10 concentration, or nil when
// unavailable.
func (b *Birdeye) HolderStats(ctx context.Context, mint string) (*domain.HolderStats, error) {
	if !b.Enabled() {
		return nil, nil
	}
	u, err := buildURL(b.BaseURL, birdeyeBase, "/holder/v1/distribution", map[string]string{
		"token_address": mint,
		"mode":          "top",
		"top_n":         "10",
		"include_list":  "true",
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data *struct {
			Summary struct {
				WalletCount *int `json:"wallet_count"`
			} `json:"summary"`
			Holders []struct {
				PercentOfSupply float64 `json:"percent_of_supply"`
			} `json:"holders"`
		} `json:"data"`
	}
	if err := b.f.getJSON(ctx, "holders", u, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, nil
	}

	count := len(resp.Data.Holders)
	if resp.Data.Summary.WalletCount != nil {
		count = *resp.Data.Summary.WalletCount
	}
	var top10 float64
	for i, h := range resp.Data.Holders {
		if i == 10 {
			break
		}
		top10 += h.PercentOfSupply
	}
	return domain.NewHolderStats(count, top10), nil
}
