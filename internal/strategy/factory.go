package strategy

import (
	"errors"
	"strings"
	"time"

	"lobbi-trader/internal/advisor"
)

// Exit modes.
const (
	ModeAdvisor    = "advisor"
	ModeThresholds = "thresholds"
	ModeTrailing   = "trailing"
)

// DefaultTrailPct is the trailing stop when none is configured.
const DefaultTrailPct = 15.0

// Factory errors
var (
	ErrUnknownExitMode      = errors.New("unknown exit mode")
	ErrInvalidTrailPct      = errors.New("trailing mode requires TrailPct in (0, 100)")
	ErrInvalidLiquidityDrop = errors.New("LiquidityDropPct must be in [0, 1)")
)

// Config selects and parameterizes the exit chain.
type Config struct {
	Mode string
	// MaxHold is the hard ceiling; zero uses DefaultMaxHold.
	MaxHold time.Duration
	// TrailPct is the trailing stop in percent; zero uses DefaultTrailPct.
	TrailPct float64
	// LiquidityDropPct enables the liquidity guard when positive (fraction).
	LiquidityDropPct float64
}

// FromConfig builds the exit chain for cfg. The time ceiling always runs first.
//
//	advisor:    ceiling, advisor
//	thresholds: ceiling, thresholds[, liquidity guard]
//	trailing:   ceiling, trailing stop, thresholds[, liquidity guard]
func FromConfig(cfg Config, adv advisor.SellAdvisor) (Chain, error) {
	if cfg.LiquidityDropPct < 0 || cfg.LiquidityDropPct >= 1 {
		return nil, ErrInvalidLiquidityDrop
	}
	chain := Chain{NewTimeCeiling(cfg.MaxHold)}

	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", ModeAdvisor:
		if adv == nil {
			adv = advisor.Noop{}
		}
		return append(chain, NewAdvisory(adv)), nil
	case ModeThresholds:
		chain = append(chain, NewThresholds())
	case ModeTrailing:
		trail := cfg.TrailPct
		if trail == 0 {
			trail = DefaultTrailPct
		}
		if trail <= 0 || trail >= 100 {
			return nil, ErrInvalidTrailPct
		}
		chain = append(chain, NewTrailingStop(trail), NewThresholds())
	default:
		return nil, ErrUnknownExitMode
	}

	if cfg.LiquidityDropPct > 0 {
		chain = append(chain, NewLiquidityGuard(cfg.LiquidityDropPct))
	}
	return chain, nil
}
