// Package discovery finds buy candidates on pump.fun venues.
//
// Feeds are queried in tiers of decreasing strictness. A later tier runs only
// when every earlier tier produced nothing. Feed failures never fail a call:
// they count as empty results.
package discovery

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/market"
	"lobbi-trader/internal/observability"
)

// Pool bounds.
const (
	DefaultPoolSize  = 12
	MaxPoolSize      = 20
	MaxReturned      = 10
	requestTimeout   = 12 * time.Second
	birdeyeListLimit = 50
)

// TokenLister is a ranked token list feed such as Birdeye.
type TokenLister interface {
	Enabled() bool
	TokenList(ctx context.Context, p market.TokenListParams) ([]market.BirdeyeToken, error)
}

// PairSearcher is a pair search feed such as DexScreener.
type PairSearcher interface {
	Search(ctx context.Context, q string) ([]market.Pair, error)
}

// Options tunes one Discover call.
type Options struct {
	// ExcludeMints are never returned.
	ExcludeMints []string
	// PoolSize is how many candidates to collect before picking; zero means
	// DefaultPoolSize, values above MaxPoolSize are capped.
	PoolSize int
}

// Discoverer runs the tiered search.
type Discoverer struct {
	lister   TokenLister
	searcher PairSearcher
	log      zerolog.Logger
	now      func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithRand sets the shuffle source.
func WithRand(r *rand.Rand) Option {
	return func(d *Discoverer) { d.rand = r }
}

// WithClock sets the time source used for age checks.
func WithClock(now func() time.Time) Option {
	return func(d *Discoverer) { d.now = now }
}

// WithTokenLister enables the ranked list tier.
func WithTokenLister(l TokenLister) Option {
	return func(d *Discoverer) { d.lister = l }
}

// NewDiscoverer creates a Discoverer over a pair search feed.
func NewDiscoverer(searcher PairSearcher, log zerolog.Logger, opts ...Option) *Discoverer {
	d := &Discoverer{
		searcher: searcher,
		log:      log.With().Str("component", "discovery").Logger(),
		now:      time.Now,
		rand:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x10bb1)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// collection is the shared state of one Discover call.
type collection struct {
	seen       map[string]struct{}
	exclude    map[string]struct{}
	candidates []scored
	poolSize   int
}

// scored is a candidate with the tier limits that admitted it.
type scored struct {
	domain.Candidate
	limits limits
	tier   string
}

func (c *collection) full() bool { return len(c.candidates) >= c.poolSize }

func (c *collection) add(cand domain.Candidate, l limits, tier string) bool {
	if _, ok := c.exclude[cand.Mint]; ok {
		return false
	}
	if _, ok := c.seen[cand.Mint]; ok {
		return false
	}
	c.seen[cand.Mint] = struct{}{}
	c.candidates = append(c.candidates, scored{Candidate: cand, limits: l, tier: tier})
	return true
}

// Discover returns up to min(f.MaxCandidates, 10) shuffled candidates.
// The error is non-nil only when ctx is done.
func (d *Discoverer) Discover(ctx context.Context, f domain.Filters, opts Options) ([]domain.Candidate, error) {
	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	if poolSize > MaxPoolSize {
		poolSize = MaxPoolSize
	}
	col := &collection{
		seen:     make(map[string]struct{}),
		exclude:  make(map[string]struct{}, len(opts.ExcludeMints)),
		poolSize: poolSize,
	}
	for _, m := range opts.ExcludeMints {
		col.exclude[m] = struct{}{}
	}

	now := d.now()
	usedTier := "none"

	if d.lister != nil && d.lister.Enabled() {
		if err := d.collectTokenList(ctx, f, col); err != nil {
			return nil, err
		}
		if len(col.candidates) > 0 {
			usedTier = tierBirdeye
		}
	}

	for i, t := range searchTiers(f) {
		// The first search tier tops up the ranked list; later tiers are fallbacks.
		if i == 0 && col.full() {
			break
		}
		if i > 0 && len(col.candidates) > 0 {
			break
		}
		before := len(col.candidates)
		if err := d.collectSearch(ctx, t, now, col); err != nil {
			return nil, err
		}
		if len(col.candidates) > before {
			usedTier = t.name
		}
	}

	out := d.postFilter(col.candidates, f, now)
	observability.RecordDiscovery(usedTier, len(out))

	d.shuffle(out)
	if limit := returnLimit(f); len(out) > limit {
		out = out[:limit]
	}
	d.log.Debug().
		Str("tier", usedTier).
		Int("collected", len(col.candidates)).
		Int("returned", len(out)).
		Msg("discovery finished")
	return out, nil
}

func returnLimit(f domain.Filters) int {
	if f.MaxCandidates <= 0 || f.MaxCandidates > MaxReturned {
		return MaxReturned
	}
	return f.MaxCandidates
}

func (d *Discoverer) shuffle(cs []domain.Candidate) {
	d.randMu.Lock()
	defer d.randMu.Unlock()
	d.rand.Shuffle(len(cs), func(i, j int) { cs[i], cs[j] = cs[j], cs[i] })
}
