package discovery

import (
	"context"
	"math"
	"strings"
	"time"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/market"
	"lobbi-trader/internal/observability"
)

// Tier names, as reported in metrics.
const (
	tierBirdeye       = "birdeye"
	tierStrict        = "strict"
	tierRelaxedFloors = "relaxed_floors"
	tierRelaxedAll    = "relaxed_all"
	tierAnyVenue      = "any_venue"
	tierUnknownAge    = "unknown_age"
)

// Relaxed floors never exceed these.
const (
	relaxedMinVolumeUsd = 3000
	relaxedMinMcapUsd   = 3000
	relaxedMaxAge       = 7 * 24 * time.Hour
	birdeyeMinLiquidity = 1000
)

var strictQueries = []string{"pumpswap", "pump", "pumpfun", "memecoin", "sol", "pepe", "doge", "wojak", "based", "trending"}

// limits are the thresholds a tier admits candidates with.
type limits struct {
	minVolume  float64
	minMcap    float64
	maxMcap    float64
	maxAge     time.Duration
	pumpOnly   bool
	unknownAge bool // missing pairCreatedAt passes the age check
}

type searchTier struct {
	name    string
	queries []string
	limits
}

func searchTiers(f domain.Filters) []searchTier {
	strict := limits{
		minVolume: f.MinVolumeUsd,
		minMcap:   f.MinMcapUsd,
		maxMcap:   f.MaxMcapUsd,
		maxAge:    f.MaxAge(),
		pumpOnly:  true,
	}
	floors := strict
	floors.minVolume = math.Min(relaxedMinVolumeUsd, f.MinVolumeUsd)
	floors.minMcap = math.Min(relaxedMinMcapUsd, f.MinMcapUsd)

	all := floors
	all.maxAge = relaxedMaxAge

	anyVenue := all
	anyVenue.pumpOnly = false

	unknownAge := anyVenue
	unknownAge.unknownAge = true

	return []searchTier{
		{name: tierStrict, queries: strictQueries, limits: strict},
		{name: tierRelaxedFloors, queries: strictQueries, limits: floors},
		{name: tierRelaxedAll, queries: []string{"pump", "solana", "trending"}, limits: all},
		{name: tierAnyVenue, queries: []string{"solana", "trending"}, limits: anyVenue},
		{name: tierUnknownAge, queries: []string{"solana", "trending"}, limits: unknownAge},
	}
}

func (d *Discoverer) collectTokenList(ctx context.Context, f domain.Filters, col *collection) error {
	minLiq := math.Min(birdeyeMinLiquidity, f.MinVolumeUsd)

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	tokens, err := d.lister.TokenList(reqCtx, market.TokenListParams{
		SortBy:       "v24hUSD",
		SortType:     "desc",
		Limit:        birdeyeListLimit,
		MinLiquidity: &minLiq,
	})
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		observability.RecordFeedFailure(tierBirdeye)
		d.log.Debug().Err(err).Msg("token list failed")
		return nil
	}

	l := limits{minVolume: f.MinVolumeUsd, minMcap: f.MinMcapUsd, maxMcap: f.MaxMcapUsd, maxAge: f.MaxAge()}
	for _, t := range tokens {
		mcap, vol := value(t.Mcap), value(t.Volume24h)
		if mcap < f.MinMcapUsd || mcap > f.MaxMcapUsd || vol < f.MinVolumeUsd {
			continue
		}
		reason := domain.CandidateReason(&vol, &mcap, nil)
		if isPumpMint(t.Address) {
			reason += " · Pump"
		}
		col.add(domain.Candidate{
			Mint:         t.Address,
			Symbol:       orDefault(t.Symbol, "???"),
			Name:         orDefault(t.Name, orDefault(t.Symbol, "Unknown")),
			Reason:       reason,
			VolumeUsd:    domain.Float(vol),
			McapUsd:      domain.Float(mcap),
			LiquidityUsd: t.Liquidity,
		}, l, tierBirdeye)
		if col.full() {
			break
		}
	}
	return nil
}

func (d *Discoverer) collectSearch(ctx context.Context, t searchTier, now time.Time, col *collection) error {
	for _, q := range t.queries {
		if err := ctx.Err(); err != nil {
			return err
		}
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		pairs, err := d.searcher.Search(reqCtx, q)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.RecordFeedFailure("dexscreener")
			d.log.Debug().Err(err).Str("query", q).Str("tier", t.name).Msg("search failed")
			continue
		}
		for i := range pairs {
			p := &pairs[i]
			if !t.admits(p, now) {
				continue
			}
			c := p.Candidate(now)
			c.Symbol = orDefault(c.Symbol, "???")
			c.Name = orDefault(c.Name, orDefault(p.BaseToken.Symbol, "Unknown"))
			col.add(c, t.limits, t.name)
			if col.full() {
				return nil
			}
		}
	}
	return nil
}

// admits applies the tier's chain, venue, volume, mcap and age limits.
func (t searchTier) admits(p *market.Pair, now time.Time) bool {
	if p.ChainID != "solana" || p.BaseToken.Address == "" {
		return false
	}
	if t.pumpOnly && !isPumpVenue(p) {
		return false
	}
	vol, mcap := value(p.Volume.H24), value(p.McapUsd())
	if vol < t.minVolume || mcap < t.minMcap || mcap > t.maxMcap {
		return false
	}
	return t.ageOK(p.CreatedAt(), now)
}

func (l limits) ageOK(createdMs *int64, now time.Time) bool {
	if createdMs == nil || *createdMs <= 0 {
		return l.unknownAge
	}
	return *createdMs >= now.Add(-l.maxAge).UnixMilli()
}

// isPumpVenue recognizes pump.fun launches by dex, mint suffix or pair URL.
func isPumpVenue(p *market.Pair) bool {
	switch p.DexID {
	case "pump", "pumpswap":
		return true
	}
	return isPumpMint(p.BaseToken.Address) || strings.Contains(strings.ToLower(p.URL), "pump")
}

func isPumpMint(mint string) bool {
	return len(mint) >= 32 && strings.Contains(strings.ToLower(mint), "pump")
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
