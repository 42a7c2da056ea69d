package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ignitex-signal-engine/internal/engine/metrics"
	"ignitex-signal-engine/internal/engine/policy"
	"ignitex-signal-engine/internal/entity"
)

func TestRegimeMatcherTierGating(t *testing.T) {
	testCases := []struct {
		name     string
		tier     entity.SignalTier
		cfg      policy.TierConfig
		rejected bool
	}{
		{"high accepted by default", entity.TierHigh, policy.DefaultTierConfig(), false},
		{"medium accepted by default", entity.TierMedium, policy.DefaultTierConfig(), false},
		{"low rejected by default", entity.TierLow, policy.DefaultTierConfig(), true},
		{
			"low accepted when enabled",
			entity.TierLow,
			policy.TierConfig{AcceptHigh: true, AcceptMedium: true, AcceptLow: true, HighPriority: entity.PriorityHigh},
			false,
		},
		{
			"high rejected when disabled",
			entity.TierHigh,
			policy.TierConfig{AcceptMedium: true, HighPriority: entity.PriorityHigh},
			true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			matcher := NewRegimeMatcher(nil, metrics.NewAggregator(nil))
			signal := &entity.Signal{Tier: tc.tier, StrategyName: "trend_follow_v2"}

			decision := matcher.Admit(signal, tc.cfg, entity.RegimeAuto)

			assert.Equal(t, tc.rejected, decision.Rejected())
			if tc.rejected {
				assert.Equal(t, ReasonTierDisabled, decision.Reason)
			}
		})
	}
}

func TestRegimeMatcherOverrideCompatibility(t *testing.T) {
	compat := CompatibilityTable{
		"trend_follow_v2": {entity.RegimeTrendingUp, entity.RegimeTrendingDown},
		"mean_reversion":  {entity.RegimeSideways},
	}

	testCases := []struct {
		name     string
		strategy string
		override entity.MarketRegime
		rejected bool
	}{
		{"auto mode never filters on regime", "mean_reversion", entity.RegimeAuto, false},
		{"compatible with pinned regime", "trend_follow_v2", entity.RegimeTrendingUp, false},
		{"incompatible with pinned regime", "mean_reversion", entity.RegimeTrendingUp, true},
		{"unlisted strategy is unrestricted", "breakout_momentum", entity.RegimeVolatile, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			matcher := NewRegimeMatcher(compat, metrics.NewAggregator(nil))
			signal := &entity.Signal{Tier: entity.TierHigh, StrategyName: tc.strategy}

			decision := matcher.Admit(signal, policy.DefaultTierConfig(), tc.override)

			assert.Equal(t, tc.rejected, decision.Rejected())
			if tc.rejected {
				assert.Equal(t, ReasonRegimeMismatch, decision.Reason)
			}
		})
	}
}

func TestRegimeMatcherAssignsPriority(t *testing.T) {
	matcher := NewRegimeMatcher(nil, metrics.NewAggregator(nil))

	high := &entity.Signal{Tier: entity.TierHigh}
	assert.False(t, matcher.Admit(high, policy.DefaultTierConfig(), entity.RegimeAuto).Rejected())
	assert.Equal(t, entity.PriorityHigh, high.Priority)

	medium := &entity.Signal{Tier: entity.TierMedium}
	assert.False(t, matcher.Admit(medium, policy.DefaultTierConfig(), entity.RegimeAuto).Rejected())
	assert.Equal(t, entity.PriorityMedium, medium.Priority)

	// Demoting HIGH-tier priority is operator policy, not a classifier
	// concern.
	demoted := policy.DefaultTierConfig()
	demoted.HighPriority = entity.PriorityMedium
	high2 := &entity.Signal{Tier: entity.TierHigh}
	assert.False(t, matcher.Admit(high2, demoted, entity.RegimeAuto).Rejected())
	assert.Equal(t, entity.PriorityMedium, high2.Priority)
}

func TestRegimeMatcherConservation(t *testing.T) {
	agg := metrics.NewAggregator(nil)
	matcher := NewRegimeMatcher(CompatibilityTable{"mean_reversion": {entity.RegimeSideways}}, agg)
	cfg := policy.DefaultTierConfig()

	matcher.Admit(&entity.Signal{Tier: entity.TierHigh}, cfg, entity.RegimeAuto)
	matcher.Admit(&entity.Signal{Tier: entity.TierLow}, cfg, entity.RegimeAuto)
	matcher.Admit(&entity.Signal{Tier: entity.TierMedium, StrategyName: "mean_reversion"}, cfg, entity.RegimeTrendingUp)

	snapshot := agg.Snapshot()
	assert.Equal(t, int64(3), snapshot.GammaSignalsReceived)
	assert.Equal(t, snapshot.GammaSignalsReceived, snapshot.GammaSignalsPassed+snapshot.GammaSignalsRejected)
	assert.Equal(t, int64(1), snapshot.RejectionReasons[ReasonTierDisabled])
	assert.Equal(t, int64(1), snapshot.RejectionReasons[ReasonRegimeMismatch])
}
