// Package hazard maps gas concentration readings to severity tiers.
package hazard

import "strings"

// Tier is a discrete severity classification.
type Tier string

const (
	// TierOK is a normal reading.
	TierOK Tier = "ok"
	// TierWarning is an elevated reading.
	TierWarning Tier = "warning"
	// TierAlert is a dangerous reading.
	TierAlert Tier = "alert"
)

const (
	// WarningThreshold is the lowest reading classified as warning.
	WarningThreshold = 50.0
	// AlertThreshold is the lowest reading classified as alert.
	AlertThreshold = 80.0
)

// Classify returns the tier for value. Each threshold is inclusive.
func Classify(value float64) Tier {
	switch {
	case value >= AlertThreshold:
		return TierAlert
	case value >= WarningThreshold:
		return TierWarning
	default:
		return TierOK
	}
}

// ParseTier converts a tier name, case-insensitively.
func ParseTier(s string) (Tier, bool) {
	switch tier := Tier(strings.ToLower(strings.TrimSpace(s))); tier {
	case TierOK, TierWarning, TierAlert:
		return tier, true
	default:
		return TierOK, false
	}
}

// AtLeast reports whether t is as severe as other or more.
func (t Tier) AtLeast(other Tier) bool {
	return t.rank() >= other.rank()
}

func (t Tier) rank() int {
	switch t {
	case TierAlert:
		return 2
	case TierWarning:
		return 1
	default:
		return 0
	}
}
