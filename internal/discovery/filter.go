package discovery

import (
	"time"

	"lobbi-trader/internal/domain"
)

// postFilter re-validates collected candidates against the limits of the tier
// that admitted them and the venue fees floor. The strict pass requires a
// known launch timestamp; when it yields nothing the timestamp requirement is
// dropped. Demo mints never pass.
func (d *Discoverer) postFilter(collected []scored, f domain.Filters, now time.Time) []domain.Candidate {
	out := passFilter(collected, f, now, true)
	if len(out) == 0 && len(collected) > 0 {
		out = passFilter(collected, f, now, false)
		if len(out) > 0 {
			d.log.Warn().
				Int("candidates", len(out)).
				Msg("no candidate has a known launch time, returning them on a degraded guarantee")
		}
	}
	return out
}

func passFilter(collected []scored, f domain.Filters, now time.Time, requireTimestamp bool) []domain.Candidate {
	var out []domain.Candidate
	for _, s := range collected {
		if valid(s, f, now, requireTimestamp) {
			out = append(out, s.Candidate)
		}
	}
	return out
}

func valid(s scored, f domain.Filters, now time.Time, requireTimestamp bool) bool {
	c := s.Candidate
	if domain.IsDemoMint(c.Mint) {
		return false
	}
	mcap := value(c.McapUsd)
	if mcap < s.limits.minMcap || mcap > s.limits.maxMcap {
		return false
	}
	if value(c.VolumeUsd) < s.limits.minVolume {
		return false
	}
	if c.GlobalFeesPaidSol != nil && *c.GlobalFeesPaidSol < f.MinGlobalFeesPaidSol {
		return false
	}

	known := c.PairCreatedAtMs != nil && *c.PairCreatedAtMs > 0
	if !known {
		return !requireTimestamp
	}
	return *c.PairCreatedAtMs >= now.Add(-s.limits.maxAge).UnixMilli()
}
