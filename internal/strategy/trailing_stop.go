package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TrailingStop exits when position value falls TrailPct percent below its
// peak. The peak is tracked per trade from the quotes it is shown.
type TrailingStop struct {
	TrailPct float64 // percent, e.g. 15

	mu    sync.Mutex
	peaks map[string]float64 // trade ID -> peak value ratio
}

// NewTrailingStop creates a TrailingStop.
func NewTrailingStop(trailPct float64) *TrailingStop {
	return &TrailingStop{TrailPct: trailPct, peaks: make(map[string]float64)}
}

// ID returns the rule identifier including parameters.
func (r *TrailingStop) ID() string {
	return fmt.Sprintf("trailing_stop_%.0fpct", r.TrailPct)
}

// Evaluate updates the peak and sells on a drawdown past the trail.
// The stop is armed only after the plan's minimum hold.
func (r *TrailingStop) Evaluate(_ context.Context, p Position) (Decision, error) {
	pnl := p.Quote.UnrealizedPnlPercent
	if pnl == nil {
		return Hold, nil
	}
	ratio := 1 + *pnl/100

	r.mu.Lock()
	peak, ok := r.peaks[p.tradeID()]
	if !ok || ratio > peak {
		peak = ratio
		r.peaks[p.tradeID()] = peak
	}
	r.mu.Unlock()

	if p.Held() < time.Duration(p.Plan.HoldMinMs)*time.Millisecond || peak <= 0 {
		return Hold, nil
	}
	drawdown := (1 - ratio/peak) * 100
	if drawdown < r.TrailPct {
		return Hold, nil
	}
	return Decision{
		Sell:   true,
		Reason: fmt.Sprintf("Trailing stop: %.1f%% off peak (peak %+.1f%%, now %+.1f%%)", drawdown, (peak-1)*100, *pnl),
		Rule:   r.ID(),
	}, nil
}

// Peak returns the tracked peak PnL percent for a trade.
func (r *TrailingStop) Peak(tradeID string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	peak, ok := r.peaks[tradeID]
	return (peak - 1) * 100, ok
}

// Forget drops the peak for a closed trade.
func (r *TrailingStop) Forget(tradeID string) {
	r.mu.Lock()
	delete(r.peaks, tradeID)
	r.mu.Unlock()
}

var _ ExitRule = (*TrailingStop)(nil)
