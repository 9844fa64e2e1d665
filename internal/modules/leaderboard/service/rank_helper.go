package service

import "github.com/PhoenixSmith/seraph-v2-sub000/pkg/tier"

// Rolling activity thresholds, independent of the tier ladder.
const (
	ActivityOnFire   = 200
	ActivityTrending = 100
	ActivitySteady   = 30
)

// ActivityLabel tags how busy a reader has been over the rolling window.
func ActivityLabel(rollingXP int) string {
	switch {
	case rollingXP >= ActivityOnFire:
		return "On Fire"
	case rollingXP >= ActivityTrending:
		return "Trending"
	case rollingXP >= ActivitySteady:
		return "Steady"
	default:
		return ""
	}
}

// ladderFrom converts stored thresholds, falling back to the defaults when they are
// missing or not strictly increasing.
func ladderFrom(stored []tier.Threshold) []tier.Threshold {
	if len(stored) == 0 || !tier.Validate(stored) {
		return tier.DefaultUserTiers
	}
	return stored
}
