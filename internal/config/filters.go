package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/viper"

	"lobbi-trader/internal/domain"
)

// FiltersFile is the filters file name inside CONFIG_DIR.
const FiltersFile = "filters.json"

// LoadFilters reads path over the default filters. A missing file yields
// the defaults; the result is validated either way.
func LoadFilters(path string) (domain.Filters, error) {
	d := domain.DefaultFilters()

	v := viper.New()
	v.SetConfigType("json")
	v.SetDefault("minVolumeUsd", d.MinVolumeUsd)
	v.SetDefault("minMcapUsd", d.MinMcapUsd)
	v.SetDefault("maxMcapUsd", d.MaxMcapUsd)
	v.SetDefault("minGlobalFeesPaidSol", d.MinGlobalFeesPaidSol)
	v.SetDefault("maxAgeMinutes", d.MaxAgeMinutes)
	v.SetDefault("minPositionSol", d.MinPositionSol)
	v.SetDefault("maxPositionSol", d.MaxPositionSol)
	v.SetDefault("maxPositionPercent", d.MaxPositionPercent)
	v.SetDefault("maxCandidates", d.MaxCandidates)
	v.SetDefault("holdMinSeconds", d.HoldMinSeconds)
	v.SetDefault("holdMaxSeconds", d.HoldMaxSeconds)
	v.SetDefault("takeProfitPercent", d.TakeProfitPercent)
	v.SetDefault("stopLossPercent", d.StopLossPercent)
	v.SetDefault("slippagePercent", d.SlippagePercent)
	v.SetDefault("priorityFeeSol", d.PriorityFeeSol)
	v.SetDefault("loopDelayMs", d.LoopDelayMs)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return domain.Filters{}, fmt.Errorf("read filters %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return domain.Filters{}, fmt.Errorf("stat filters %s: %w", path, err)
		}
	}

	var f domain.Filters
	if err := v.Unmarshal(&f); err != nil {
		return domain.Filters{}, fmt.Errorf("decode filters: %w", err)
	}
	if err := f.Validate(); err != nil {
		return domain.Filters{}, err
	}
	return f, nil
}
