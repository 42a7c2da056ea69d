package policy

import (
	"time"

	"ignitex-signal-engine/internal/entity"
)

// ThresholdConfig is the mutable filtering policy read by the quality filter.
// QualityThreshold is informational only and never consulted by the filtering
// decision; MLThreshold and StrategyWinRateThreshold drive it.
type ThresholdConfig struct {
	QualityThreshold         float64 `json:"quality_threshold"`
	MLThreshold              float64 `json:"ml_threshold"`
	StrategyWinRateThreshold float64 `json:"strategy_win_rate_threshold"`
}

// TierConfig controls which quality tiers pass the regime matcher and how
// HIGH-tier signals are prioritized.
type TierConfig struct {
	AcceptHigh   bool                  `json:"accept_high"`
	AcceptMedium bool                  `json:"accept_medium"`
	AcceptLow    bool                  `json:"accept_low"`
	HighPriority entity.SignalPriority `json:"high_priority"`
}

// DefaultThresholds returns the documented startup policy.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		QualityThreshold:         52,
		MLThreshold:              0.50,
		StrategyWinRateThreshold: 35,
	}
}

// DefaultTierConfig accepts HIGH and MEDIUM; LOW stays rejected unless the
// operator explicitly enables it.
func DefaultTierConfig() TierConfig {
	return TierConfig{
		AcceptHigh:   true,
		AcceptMedium: true,
		AcceptLow:    false,
		HighPriority: entity.PriorityHigh,
	}
}

// DefaultDropIntervals returns the publication cadence per subscription tier.
func DefaultDropIntervals() map[entity.SubscriptionTier]time.Duration {
	return map[entity.SubscriptionTier]time.Duration{
		entity.SubscriptionFree: time.Hour,
		entity.SubscriptionPro:  15 * time.Minute,
		entity.SubscriptionMax:  time.Minute,
	}
}
