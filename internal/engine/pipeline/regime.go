package pipeline

import (
	"ignitex-signal-engine/internal/engine/metrics"
	"ignitex-signal-engine/internal/engine/policy"
	"ignitex-signal-engine/internal/entity"
)

// CompatibilityTable maps a strategy to the market regimes it may trade in.
// A strategy absent from the table is unrestricted. The table is operator
// policy injected from configuration, never inferred.
type CompatibilityTable map[string][]entity.MarketRegime

// Compatible reports whether the strategy may trade under the given regime.
func (t CompatibilityTable) Compatible(strategyName string, regime entity.MarketRegime) bool {
	regimes, ok := t[strategyName]
	if !ok {
		return true
	}
	for _, r := range regimes {
		if r == regime {
			return true
		}
	}
	return false
}

// RegimeMatcher gates classified signals on tier acceptance and, when the
// operator has pinned a regime override, on strategy/regime compatibility.
type RegimeMatcher struct {
	compat  CompatibilityTable
	metrics *metrics.Aggregator
}

// NewRegimeMatcher creates a new RegimeMatcher.
func NewRegimeMatcher(compat CompatibilityTable, m *metrics.Aggregator) *RegimeMatcher {
	return &RegimeMatcher{compat: compat, metrics: m}
}

// Admit applies tier gating and attaches the priority label. With an active
// regime override (anything but AUTO) the strategy must be compatible with
// the pinned regime; in AUTO mode the detected regime applies with no extra
// filtering beyond tier gating.
func (r *RegimeMatcher) Admit(signal *entity.Signal, cfg policy.TierConfig, override entity.MarketRegime) Decision {
	accepted := false
	switch signal.Tier {
	case entity.TierHigh:
		accepted = cfg.AcceptHigh
	case entity.TierMedium:
		accepted = cfg.AcceptMedium
	case entity.TierLow:
		accepted = cfg.AcceptLow
	}
	if !accepted {
		r.metrics.ObserveGamma(false, ReasonTierDisabled)
		return Reject(ReasonTierDisabled)
	}

	if override != entity.RegimeAuto && !r.compat.Compatible(signal.StrategyName, override) {
		r.metrics.ObserveGamma(false, ReasonRegimeMismatch)
		return Reject(ReasonRegimeMismatch)
	}

	if signal.Tier == entity.TierHigh {
		signal.Priority = cfg.HighPriority
	} else {
		signal.Priority = entity.PriorityMedium
	}

	r.metrics.ObserveGamma(true, "")
	return Pass()
}
