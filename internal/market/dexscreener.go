package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lobbi-trader/internal/domain"
)

const dexscreenerBase = "https://api.dexscreener.com"

// Pair is a DexScreener trading pair.
type Pair struct {
	ChainID     string    `json:"chainId"`
	DexID       string    `json:"dexId"`
	URL         string    `json:"url"`
	PairAddress string    `json:"pairAddress"`
	BaseToken   PairToken `json:"baseToken"`
	PriceUsd    string    `json:"priceUsd"`
	Volume      struct {
		H24 *float64 `json:"h24"`
	} `json:"volume"`
	Liquidity *struct {
		Usd *float64 `json:"usd"`
	} `json:"liquidity"`
	Fdv           *float64  `json:"fdv"`
	MarketCap     *float64  `json:"marketCap"`
	PairCreatedAt int64     `json:"pairCreatedAt"`
	Info          *PairInfo `json:"info"`
}

// PairToken identifies one side of a pair.
type PairToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// PairInfo carries published links.
type PairInfo struct {
	Websites []struct {
		URL string `json:"url"`
	} `json:"websites"`
	Socials []struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"socials"`
}

// LiquidityUsd returns pool liquidity, or nil.
func (p *Pair) LiquidityUsd() *float64 {
	if p.Liquidity == nil {
		return nil
	}
	return p.Liquidity.Usd
}

// McapUsd returns fdv, then market cap, then liquidity, or nil.
func (p *Pair) McapUsd() *float64 {
	switch {
	case p.Fdv != nil:
		return p.Fdv
	case p.MarketCap != nil:
		return p.MarketCap
	default:
		return p.LiquidityUsd()
	}
}

// Price parses priceUsd, or nil when absent or non-positive.
func (p *Pair) Price() *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(p.PriceUsd), 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

// CreatedAt returns pairCreatedAt in ms, or nil when unknown.
func (p *Pair) CreatedAt() *int64 {
	if p.PairCreatedAt <= 0 {
		return nil
	}
	v := p.PairCreatedAt
	return &v
}

// Socials extracts twitter, telegram and website links.
func (p *Pair) Socials() *domain.Socials {
	if p.Info == nil {
		return nil
	}
	var s domain.Socials
	for _, x := range p.Info.Socials {
		switch strings.ToLower(x.Type) {
		case "twitter", "x":
			s.Twitter = x.URL
		case "telegram":
			s.Telegram = x.URL
		}
	}
	if len(p.Info.Websites) > 0 {
		s.Website = p.Info.Websites[0].URL
	}
	if s == (domain.Socials{}) {
		return nil
	}
	return &s
}

// Candidate converts the pair into a discovery candidate.
func (p *Pair) Candidate(now time.Time) domain.Candidate {
	vol := p.Volume.H24
	mcap := p.McapUsd()
	c := domain.Candidate{
		Mint:            p.BaseToken.Address,
		Symbol:          p.BaseToken.Symbol,
		Name:            p.BaseToken.Name,
		VolumeUsd:       vol,
		McapUsd:         mcap,
		LiquidityUsd:    p.LiquidityUsd(),
		PairCreatedAtMs: p.CreatedAt(),
		DexID:           p.DexID,
		URL:             p.URL,
		Socials:         p.Socials(),
	}
	c.Reason = domain.CandidateReason(vol, mcap, c.AgeMinutes(now))
	return c
}

// DexScreener is a client for the public DexScreener API.
type DexScreener struct {
	BaseURL string
	f       fetcher
}

// DexScreenerOption configures a DexScreener client.
type DexScreenerOption func(*DexScreener)

// WithDexBaseURL overrides the API base, for tests.
func WithDexBaseURL(u string) DexScreenerOption {
	return func(d *DexScreener) { d.BaseURL = u }
}

// WithDexHTTPClient sets the HTTP client.
func WithDexHTTPClient(c *http.Client) DexScreenerOption {
	return func(d *DexScreener) { d.f.http = c }
}

// WithDexCache caches search responses for ttl.
func WithDexCache(c Cache, ttl time.Duration) DexScreenerOption {
	return func(d *DexScreener) {
		d.f.cache = c
		d.f.ttl = ttl
	}
}

// NewDexScreener creates a client.
func NewDexScreener(opts ...DexScreenerOption) *DexScreener {
	d := &DexScreener{
		BaseURL: dexscreenerBase,
		f:       newFetcher("dexscreener", nil, nil, 0),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Search runs a free-text pair search.
func (d *DexScreener) Search(ctx context.Context, q string) ([]Pair, error) {
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("search query required")
	}
	u, err := buildURL(d.BaseURL, dexscreenerBase, "/latest/dex/search", map[string]string{"q": q})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Pairs []Pair `json:"pairs"`
	}
	if err := d.f.getJSON(ctx, "search", u, &resp); err != nil {
		return nil, err
	}
	return resp.Pairs, nil
}

// TokenPairs returns the Solana pairs trading mint, most liquid first.
func (d *DexScreener) TokenPairs(ctx context.Context, mint string) ([]Pair, error) {
	u, err := buildURL(d.BaseURL, dexscreenerBase, "/token-pairs/v1/solana/"+url.PathEscape(mint), nil)
	if err != nil {
		return nil, err
	}
	// The endpoint returns a bare array; older deployments wrap it in {pairs}.
	var raw json.RawMessage
	uncached := d.f
	uncached.cache = nil
	if err := uncached.getJSON(ctx, "token_pairs", u, &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var pairs []Pair
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return nil, fmt.Errorf("dexscreener decode: %w", err)
		}
		return pairs, nil
	}
	var wrapped struct {
		Pairs []Pair `json:"pairs"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("dexscreener decode: %w", err)
	}
	return wrapped.Pairs, nil
}

func (d *DexScreener) firstPair(ctx context.Context, mint string) (*Pair, error) {
	pairs, err := d.TokenPairs(ctx, mint)
	if err != nil || len(pairs) == 0 {
		return nil, err
	}
	return &pairs[0], nil
}

// TokenPriceUsd returns the first pair's USD price, or nil.
func (d *DexScreener) TokenPriceUsd(ctx context.Context, mint string) (*float64, error) {
	p, err := d.firstPair(ctx, mint)
	if err != nil || p == nil {
		return nil, err
	}
	return p.Price(), nil
}

// TokenMcapUsd returns fdv or market cap of the first pair, or nil.
func (d *DexScreener) TokenMcapUsd(ctx context.Context, mint string) (*float64, error) {
	p, err := d.firstPair(ctx, mint)
	if err != nil || p == nil {
		return nil, err
	}
	if p.Fdv != nil {
		return p.Fdv, nil
	}
	return p.MarketCap, nil
}

// MarketStats returns a snapshot of the first pair, or nil when untraded.
func (d *DexScreener) MarketStats(ctx context.Context, mint string) (*domain.MarketStats, error) {
	p, err := d.firstPair(ctx, mint)
	if err != nil || p == nil {
		return nil, err
	}
	mcap := p.Fdv
	if mcap == nil {
		mcap = p.MarketCap
	}
	return &domain.MarketStats{
		McapUsd:         mcap,
		VolumeUsd:       p.Volume.H24,
		LiquidityUsd:    p.LiquidityUsd(),
		PriceUsd:        p.Price(),
		PairCreatedAtMs: p.CreatedAt(),
	}, nil
}
