package strategy

import (
	"context"
	"fmt"
	"time"
)

// DefaultMaxHold is the hard ceiling on any position.
const DefaultMaxHold = 10 * time.Minute

// TimeCeiling forces an exit once a position has been held MaxHold.
// It runs first in every chain.
type TimeCeiling struct {
	MaxHold time.Duration
}

// NewTimeCeiling creates a TimeCeiling. A non-positive maxHold uses DefaultMaxHold.
func NewTimeCeiling(maxHold time.Duration) *TimeCeiling {
	if maxHold <= 0 {
		maxHold = DefaultMaxHold
	}
	return &TimeCeiling{MaxHold: maxHold}
}

// ID returns the rule identifier including parameters.
func (r *TimeCeiling) ID() string {
	return fmt.Sprintf("time_ceiling_%ds", int64(r.MaxHold/time.Second))
}

// Evaluate sells when the hold time reaches the ceiling.
func (r *TimeCeiling) Evaluate(_ context.Context, p Position) (Decision, error) {
	if p.Held() < r.MaxHold {
		return Hold, nil
	}
	return Decision{
		Sell:   true,
		Reason: fmt.Sprintf("Max hold %dm—time-based exit (held %dm)", int64(r.MaxHold/time.Minute), heldMinutes(p)),
		Rule:   r.ID(),
	}, nil
}

var _ ExitRule = (*TimeCeiling)(nil)
