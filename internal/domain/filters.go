package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidFilters is returned when filter values are inconsistent.
var ErrInvalidFilters = errors.New("invalid filters")

// Filters is the process-wide trading configuration, validated once at startup.
type Filters struct {
	MinVolumeUsd         float64 `json:"minVolumeUsd" mapstructure:"minVolumeUsd"`
	MinMcapUsd           float64 `json:"minMcapUsd" mapstructure:"minMcapUsd"`
	MaxMcapUsd           float64 `json:"maxMcapUsd" mapstructure:"maxMcapUsd"`
	MinGlobalFeesPaidSol float64 `json:"minGlobalFeesPaidSol" mapstructure:"minGlobalFeesPaidSol"`
	MaxAgeMinutes        float64 `json:"maxAgeMinutes" mapstructure:"maxAgeMinutes"`

	MinPositionSol     float64 `json:"minPositionSol" mapstructure:"minPositionSol"`
	MaxPositionSol     float64 `json:"maxPositionSol" mapstructure:"maxPositionSol"`
	MaxPositionPercent float64 `json:"maxPositionPercent" mapstructure:"maxPositionPercent"` // of wallet balance
	MaxCandidates      int     `json:"maxCandidates" mapstructure:"maxCandidates"`

	HoldMinSeconds    float64 `json:"holdMinSeconds" mapstructure:"holdMinSeconds"`
	HoldMaxSeconds    float64 `json:"holdMaxSeconds" mapstructure:"holdMaxSeconds"`
	TakeProfitPercent float64 `json:"takeProfitPercent" mapstructure:"takeProfitPercent"`
	StopLossPercent   float64 `json:"stopLossPercent" mapstructure:"stopLossPercent"` // negative

	SlippagePercent float64 `json:"slippagePercent" mapstructure:"slippagePercent"`
	PriorityFeeSol  float64 `json:"priorityFeeSol" mapstructure:"priorityFeeSol"`
	LoopDelayMs     int64   `json:"loopDelayMs" mapstructure:"loopDelayMs"`
}

// DefaultFilters returns the built-in configuration.
func DefaultFilters() Filters {
	return Filters{
		MinVolumeUsd:         5000,
		MinMcapUsd:           5000,
		MaxMcapUsd:           31400,
		MinGlobalFeesPaidSol: 0.8,
		MaxAgeMinutes:        120,
		MinPositionSol:       0.1,
		MaxPositionSol:       0.1,
		MaxPositionPercent:   10,
		MaxCandidates:        3,
		HoldMinSeconds:       30,
		HoldMaxSeconds:       300,
		TakeProfitPercent:    50,
		StopLossPercent:      -25,
		SlippagePercent:      15,
		PriorityFeeSol:       0.0001,
		LoopDelayMs:          180000,
	}
}

// LoopDelay returns the inter-cycle cooldown.
func (f Filters) LoopDelay() time.Duration {
	return time.Duration(f.LoopDelayMs) * time.Millisecond
}

// MaxAge returns the maximum candidate age.
func (f Filters) MaxAge() time.Duration {
	return time.Duration(f.MaxAgeMinutes * float64(time.Minute))
}

// Validate rejects inconsistent values.
func (f Filters) Validate() error {
	switch {
	case f.MinVolumeUsd < 0, f.MinMcapUsd < 0, f.MaxMcapUsd < 0:
		return fmt.Errorf("%w: negative volume/mcap threshold", ErrInvalidFilters)
	case f.MinMcapUsd > f.MaxMcapUsd:
		return fmt.Errorf("%w: minMcapUsd %.0f > maxMcapUsd %.0f", ErrInvalidFilters, f.MinMcapUsd, f.MaxMcapUsd)
	case f.MaxAgeMinutes <= 0:
		return fmt.Errorf("%w: maxAgeMinutes must be positive", ErrInvalidFilters)
	case f.MinPositionSol <= 0 || f.MaxPositionSol <= 0:
		return fmt.Errorf("%w: position size must be positive", ErrInvalidFilters)
	case f.MinPositionSol > f.MaxPositionSol:
		return fmt.Errorf("%w: minPositionSol %.4f > maxPositionSol %.4f", ErrInvalidFilters, f.MinPositionSol, f.MaxPositionSol)
	case f.MaxPositionPercent <= 0 || f.MaxPositionPercent > 100:
		return fmt.Errorf("%w: maxPositionPercent must be in (0, 100]", ErrInvalidFilters)
	case f.MaxCandidates < 1:
		return fmt.Errorf("%w: maxCandidates must be >= 1", ErrInvalidFilters)
	case f.HoldMinSeconds < 0 || f.HoldMinSeconds > f.HoldMaxSeconds:
		return fmt.Errorf("%w: holdMinSeconds %.0f / holdMaxSeconds %.0f", ErrInvalidFilters, f.HoldMinSeconds, f.HoldMaxSeconds)
	case f.TakeProfitPercent <= 0:
		return fmt.Errorf("%w: takeProfitPercent must be positive", ErrInvalidFilters)
	case f.StopLossPercent > 0:
		return fmt.Errorf("%w: stopLossPercent must be <= 0", ErrInvalidFilters)
	case f.SlippagePercent < 0 || f.PriorityFeeSol < 0:
		return fmt.Errorf("%w: negative slippage or priority fee", ErrInvalidFilters)
	case f.LoopDelayMs < 0:
		return fmt.Errorf("%w: loopDelayMs must be >= 0", ErrInvalidFilters)
	}
	return nil
}
