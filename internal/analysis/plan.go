// Package analysis maps candidate metrics to a hold plan.
package analysis

import (
	"fmt"
	"math"
	"strings"

	"lobbi-trader/internal/domain"
)

// Hold bounds in milliseconds.
const (
	AbsoluteMaxHoldMs    int64 = 10 * 60 * 1000
	ConcentratedMaxMs    int64 = 2 * 60 * 1000
	ThinLiquidityMaxMs   int64 = 2 * 60 * 1000
	NearMaxMcapMaxMs     int64 = 3 * 60 * 1000
	LowVelocityFloorMs   int64 = 60 * 1000
	MaxTakeProfitPercent       = 80.0
	LooseStopLossPercent       = -15.0
)

// Signal thresholds.
const (
	HighVelocity       = 0.5
	LowVelocity        = 0.1
	GoodLiquidityRatio = 0.3
	ThinLiquidityRatio = 0.1
	NearMaxMcapRatio   = 0.8

	ConcentratedMinHolders  = 10
	ConcentratedTop10Pct    = 85.0
	GoodHoldersExtension    = 1.2
	HighVelocityExtension   = 1.5
	LowVelocityContraction  = 0.6
	GoodHoldersTPBoost      = 10.0
	HighVelocityTPBoost     = 20.0
	LowVelocitySLTightening = 5.0
)

// ReasonDefault is used when no adjustment fires.
const ReasonDefault = "default"

// ReasonResumed marks a plan rebuilt for a resumed position.
const ReasonResumed = "resumed"

// PlanHold computes a hold plan. Pure and deterministic.
//
// Adjustments apply in a fixed order and every cap is a running min against the
// already-adjusted value. A concentration ceiling, once set, bounds every later
// extension.
func PlanHold(c domain.Candidate, f domain.Filters, h *domain.HolderStats) domain.HoldPlan {
	holdMin := int64(f.HoldMinSeconds * 1000)
	holdMax := int64(f.HoldMaxSeconds * 1000)
	tp := f.TakeProfitPercent
	sl := f.StopLossPercent

	ceiling := AbsoluteMaxHoldMs
	var clauses []string

	if h != nil {
		if h.IsGood {
			holdMax = minInt(scale(holdMax, GoodHoldersExtension), ceiling)
			tp = math.Min(tp+GoodHoldersTPBoost, MaxTakeProfitPercent)
			clauses = append(clauses, fmt.Sprintf("good holders (%d, top10 %.0f%%)", h.HolderCount, h.Top10Percent))
		} else if h.HolderCount < ConcentratedMinHolders || h.Top10Percent > ConcentratedTop10Pct {
			ceiling = ConcentratedMaxMs
			holdMax = minInt(holdMax, ceiling)
			clauses = append(clauses, "concentrated holders")
		}
	}

	vol := value(c.VolumeUsd)
	mcap := value(c.McapUsd)
	if vol > 0 && mcap > 0 {
		velocity := vol / mcap
		switch {
		case velocity > HighVelocity:
			holdMax = minInt(scale(holdMax, HighVelocityExtension), ceiling)
			tp = math.Min(tp+HighVelocityTPBoost, MaxTakeProfitPercent)
			clauses = append(clauses, "high vol/mcap")
		case velocity < LowVelocity:
			holdMax = maxInt(scale(holdMax, LowVelocityContraction), minInt(LowVelocityFloorMs, ceiling))
			sl = math.Min(sl-LowVelocitySLTightening, LooseStopLossPercent)
			clauses = append(clauses, "low velocity")
		}
	}

	liq := value(c.LiquidityUsd)
	if liq > 0 && mcap > 0 {
		ratio := liq / mcap
		switch {
		case ratio > GoodLiquidityRatio:
			clauses = append(clauses, "good liquidity")
		case ratio < ThinLiquidityRatio:
			holdMax = minInt(holdMax, ThinLiquidityMaxMs)
			clauses = append(clauses, "thin liquidity")
		}
	}

	if mcap > 0 && f.MaxMcapUsd > 0 && mcap > NearMaxMcapRatio*f.MaxMcapUsd {
		holdMax = minInt(holdMax, NearMaxMcapMaxMs)
		clauses = append(clauses, "near max mcap")
	}

	if holdMin > holdMax {
		holdMin = holdMax
	}

	reason := ReasonDefault
	if len(clauses) > 0 {
		reason = strings.Join(clauses, "; ")
	}

	return domain.HoldPlan{
		HoldMinMs:         holdMin,
		HoldMaxMs:         holdMax,
		TakeProfitPercent: tp,
		StopLossPercent:   sl,
		Reason:            reason,
	}
}

// PlanHoldDefault returns the unadjusted plan used when resuming a position.
func PlanHoldDefault(f domain.Filters) domain.HoldPlan {
	return domain.HoldPlan{
		HoldMinMs:         int64(f.HoldMinSeconds * 1000),
		HoldMaxMs:         int64(f.HoldMaxSeconds * 1000),
		TakeProfitPercent: f.TakeProfitPercent,
		StopLossPercent:   f.StopLossPercent,
		Reason:            ReasonResumed,
	}
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func scale(ms int64, k float64) int64 {
	return int64(math.Round(float64(ms) * k))
}

func minInt(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
