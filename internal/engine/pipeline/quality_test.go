package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"ignitex-signal-engine/internal/engine/metrics"
	"ignitex-signal-engine/internal/engine/policy"
	"ignitex-signal-engine/internal/entity"
)

type stubStats map[string]float64

func (s stubStats) WinRate(strategyName string) (float64, bool) {
	winRate, ok := s[strategyName]
	return winRate, ok
}

type failingScorer struct{}

func (failingScorer) WinProbability(context.Context, *entity.Signal) (float64, error) {
	return 0, errors.New("model unavailable")
}

func TestQualityFilterDecisions(t *testing.T) {
	thresholds := policy.DefaultThresholds() // ml 0.50, strategy win rate 35

	testCases := []struct {
		name           string
		winProbability float64
		stats          stubStats
		strategy       string
		reason         string
	}{
		{
			name:           "passes above both gates",
			winProbability: 0.6,
			stats:          stubStats{"trend_follow_v2": 40},
			strategy:       "trend_follow_v2",
		},
		{
			name:           "ml threshold rejects first",
			winProbability: 0.4,
			stats:          stubStats{"trend_follow_v2": 20},
			strategy:       "trend_follow_v2",
			reason:         ReasonMLThreshold,
		},
		{
			name:           "strategy veto after ml pass",
			winProbability: 0.55,
			stats:          stubStats{"mean_reversion": 20},
			strategy:       "mean_reversion",
			reason:         ReasonStrategyVeto,
		},
		{
			name:           "veto is absolute even at certainty",
			winProbability: 1.0,
			stats:          stubStats{"mean_reversion": 10},
			strategy:       "mean_reversion",
			reason:         ReasonStrategyVeto,
		},
		{
			name:           "no history exempts from veto",
			winProbability: 0.51,
			stats:          stubStats{},
			strategy:       "brand_new_strategy",
		},
		{
			name:           "ml threshold boundary passes",
			winProbability: 0.50,
			stats:          stubStats{},
			strategy:       "trend_follow_v2",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			agg := metrics.NewAggregator(nil)
			filter := NewQualityFilter(ModelScore{}, agg)
			signal := &entity.Signal{
				StrategyName:   tc.strategy,
				WinProbability: tc.winProbability,
				QualityScore:   60,
			}

			decision := filter.Filter(context.Background(), signal, thresholds, tc.stats)

			if tc.reason == "" {
				assert.False(t, decision.Rejected())
			} else {
				assert.True(t, decision.Rejected())
				assert.Equal(t, tc.reason, decision.Reason)
			}

			snapshot := agg.Snapshot()
			assert.Equal(t, int64(1), snapshot.DeltaProcessed)
			assert.Equal(t, snapshot.DeltaProcessed, snapshot.DeltaPassed+snapshot.DeltaRejected)
		})
	}
}

func TestQualityFilterScorerError(t *testing.T) {
	agg := metrics.NewAggregator(nil)
	filter := NewQualityFilter(failingScorer{}, agg)
	signal := &entity.Signal{StrategyName: "trend_follow_v2", WinProbability: 0.9}

	decision := filter.Filter(context.Background(), signal, policy.DefaultThresholds(), stubStats{})

	assert.True(t, decision.Rejected())
	assert.Equal(t, ReasonScorerError, decision.Reason)
	assert.Equal(t, int64(1), agg.Snapshot().RejectionReasons[ReasonScorerError])
}

func TestQualityFilterIgnoresQualityThreshold(t *testing.T) {
	thresholds := policy.ThresholdConfig{
		QualityThreshold:         99, // informational only
		MLThreshold:              0.50,
		StrategyWinRateThreshold: 35,
	}
	filter := NewQualityFilter(ModelScore{}, metrics.NewAggregator(nil))
	signal := &entity.Signal{StrategyName: "trend_follow_v2", WinProbability: 0.6, QualityScore: 10}

	decision := filter.Filter(context.Background(), signal, thresholds, stubStats{"trend_follow_v2": 50})

	assert.False(t, decision.Rejected(), "quality threshold must never filter")
}
