package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDexScreener_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest/dex/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "pumpswap" {
			t.Errorf("expected q=pumpswap, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pairs":[{
			"chainId":"solana","dexId":"pumpswap","url":"https://dexscreener.com/solana/x",
			"baseToken":{"address":"AbcMint1111pump","name":"Abc","symbol":"ABC"},
			"priceUsd":"0.0000123","volume":{"h24":12345},"liquidity":{"usd":4000},
			"fdv":20100,"pairCreatedAt":1700000000000,
			"info":{"websites":[{"url":"https://abc.fun"}],"socials":[{"type":"twitter","url":"https://x.com/abc"}]}
		}]}`))
	}))
	defer server.Close()

	d := NewDexScreener(WithDexBaseURL(server.URL))
	pairs, err := d.Search(context.Background(), "pumpswap")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}

	p := pairs[0]
	if p.McapUsd() == nil || *p.McapUsd() != 20100 {
		t.Errorf("expected mcap 20100 from fdv, got %v", p.McapUsd())
	}
	if p.Price() == nil || *p.Price() != 0.0000123 {
		t.Errorf("unexpected price %v", p.Price())
	}

	c := p.Candidate(time.UnixMilli(1700000000000 + 14*60000))
	if c.Mint != "AbcMint1111pump" || c.Symbol != "ABC" {
		t.Errorf("unexpected candidate identity %+v", c)
	}
	if c.Reason != "Vol $12.3k · Mcap $20.1k · 14m old" {
		t.Errorf("unexpected reason %q", c.Reason)
	}
	if c.Socials == nil || c.Socials.Twitter != "https://x.com/abc" || c.Socials.Website != "https://abc.fun" {
		t.Errorf("unexpected socials %+v", c.Socials)
	}
}

func TestDexScreener_TokenPairsAcceptsBothShapes(t *testing.T) {
	bodies := []string{
		`[{"baseToken":{"address":"M"},"priceUsd":"1.5","marketCap":9000}]`,
		`{"pairs":[{"baseToken":{"address":"M"},"priceUsd":"1.5","marketCap":9000}]}`,
	}
	for _, body := range bodies {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/token-pairs/v1/solana/M" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			_, _ = w.Write([]byte(body))
		}))

		d := NewDexScreener(WithDexBaseURL(server.URL))
		price, err := d.TokenPriceUsd(context.Background(), "M")
		if err != nil {
			t.Fatalf("TokenPriceUsd: %v", err)
		}
		if price == nil || *price != 1.5 {
			t.Errorf("expected price 1.5, got %v", price)
		}
		mcap, err := d.TokenMcapUsd(context.Background(), "M")
		if err != nil || mcap == nil || *mcap != 9000 {
			t.Errorf("expected mcap 9000, got %v (err %v)", mcap, err)
		}
		server.Close()
	}
}

func TestDexScreener_NoPairsIsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	d := NewDexScreener(WithDexBaseURL(server.URL))
	stats, err := d.MarketStats(context.Background(), "M")
	if err != nil {
		t.Fatalf("MarketStats: %v", err)
	}
	if stats != nil {
		t.Errorf("expected nil stats, got %+v", stats)
	}
}

func TestDexScreener_HTTPErrorReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	d := NewDexScreener(WithDexBaseURL(server.URL))
	if _, err := d.Search(context.Background(), "sol"); err == nil {
		t.Fatal("expected error on 429")
	}
}

type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	return b, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func TestDexScreener_SearchUsesCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"pairs":[]}`))
	}))
	defer server.Close()

	d := NewDexScreener(WithDexBaseURL(server.URL), WithDexCache(&mapCache{m: map[string][]byte{}}, time.Minute))
	for i := 0; i < 3; i++ {
		if _, err := d.Search(context.Background(), "pump"); err != nil {
			t.Fatalf("Search: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream hit, got %d", hits.Load())
	}
}

func TestBirdeye_DisabledWithoutKey(t *testing.T) {
	b := NewBirdeye("")
	if b.Enabled() {
		t.Fatal("expected disabled client")
	}
	h, err := b.HolderStats(context.Background(), "M")
	if err != nil || h != nil {
		t.Errorf("expected nil, nil; got %v, %v", h, err)
	}
}

func TestBirdeye_HolderStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "k" || r.Header.Get("x-chain") != "solana" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		q := r.URL.Query()
		if q.Get("token_address") != "M" || q.Get("mode") != "top" || q.Get("top_n") != "10" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"data":{"summary":{"wallet_count":42},"holders":[
			{"percent_of_supply":20},{"percent_of_supply":15},{"percent_of_supply":10}
		]}}`))
	}))
	defer server.Close()

	b := NewBirdeye("k", WithBirdeyeBaseURL(server.URL))
	h, err := b.HolderStats(context.Background(), "M")
	if err != nil {
		t.Fatalf("HolderStats: %v", err)
	}
	if h.HolderCount != 42 || h.Top10Percent != 45 || !h.IsGood {
		t.Errorf("unexpected stats %+v", h)
	}
}

func TestBirdeye_HolderCountFallsBackToList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"summary":{},"holders":[{"percent_of_supply":90}]}}`))
	}))
	defer server.Close()

	b := NewBirdeye("k", WithBirdeyeBaseURL(server.URL))
	h, err := b.HolderStats(context.Background(), "M")
	if err != nil {
		t.Fatalf("HolderStats: %v", err)
	}
	if h.HolderCount != 1 || h.IsGood {
		t.Errorf("unexpected stats %+v", h)
	}
}

func TestBirdeye_TokenListAndPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/defi/tokenlist":
			q := r.URL.Query()
			if q.Get("limit") != "50" || q.Get("sort_by") != "v24hUSD" || q.Get("min_liquidity") != "1000" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"data":{"tokens":[{"address":"A","symbol":"A","mc":10000,"v24hUSD":7000}]}}`))
		case "/defi/price":
			_, _ = w.Write([]byte(`{"data":{"value":0}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	b := NewBirdeye("k", WithBirdeyeBaseURL(server.URL))
	minLiq := 1000.0
	tokens, err := b.TokenList(context.Background(), TokenListParams{Limit: 500, MinLiquidity: &minLiq})
	if err != nil {
		t.Fatalf("TokenList: %v", err)
	}
	if len(tokens) != 1 || *tokens[0].Mcap != 10000 {
		t.Errorf("unexpected tokens %+v", tokens)
	}

	price, err := b.TokenPriceUsd(context.Background(), "A")
	if err != nil || price != nil {
		t.Errorf("zero price must read as nil, got %v (err %v)", price, err)
	}
}

type fixedPrice struct {
	p   *float64
	err error
}

func (f fixedPrice) TokenPriceUsd(context.Context, string) (*float64, error) { return f.p, f.err }

func TestPriceChain_FirstPositiveWins(t *testing.T) {
	two := 2.0
	chain := PriceChain{
		fixedPrice{err: errors.New("stream down")},
		fixedPrice{},
		fixedPrice{p: &two},
	}
	p, err := chain.TokenPriceUsd(context.Background(), "M")
	if err != nil || p == nil || *p != 2 {
		t.Fatalf("expected 2, got %v (err %v)", p, err)
	}

	chain = PriceChain{fixedPrice{err: errors.New("down")}, fixedPrice{}}
	p, err = chain.TokenPriceUsd(context.Background(), "M")
	if p != nil || err == nil {
		t.Fatalf("expected nil price with last error, got %v, %v", p, err)
	}
}
