package pipeline

import (
	"context"

	"ignitex-signal-engine/internal/engine/metrics"
	"ignitex-signal-engine/internal/engine/policy"
	"ignitex-signal-engine/internal/entity"
)

// StatsProvider exposes per-strategy historical win rates (percentages in
// [0,100]). The second return is false when the strategy has no history yet.
type StatsProvider interface {
	WinRate(strategyName string) (float64, bool)
}

// QualityFilter applies the ML win-probability threshold and the absolute
// strategy-win-rate veto.
type QualityFilter struct {
	scorer  Scorer
	metrics *metrics.Aggregator
}

// NewQualityFilter creates a new QualityFilter.
func NewQualityFilter(scorer Scorer, m *metrics.Aggregator) *QualityFilter {
	return &QualityFilter{scorer: scorer, metrics: m}
}

// Filter scores the signal and gates it. The ML check runs first; the
// strategy veto is evaluated after it and is absolute: a vetoed strategy is
// rejected with the veto reason even at winProbability 1.0. The quality
// threshold in cfg is informational and never consulted here.
func (f *QualityFilter) Filter(ctx context.Context, signal *entity.Signal, cfg policy.ThresholdConfig, stats StatsProvider) Decision {
	winProbability, err := f.scorer.WinProbability(ctx, signal)
	if err != nil {
		f.metrics.ObserveDelta(false, ReasonScorerError, signal.QualityScore)
		return Reject(ReasonScorerError)
	}
	signal.WinProbability = winProbability

	if winProbability < cfg.MLThreshold {
		f.metrics.ObserveDelta(false, ReasonMLThreshold, signal.QualityScore)
		return Reject(ReasonMLThreshold)
	}

	if winRate, ok := stats.WinRate(signal.StrategyName); ok && winRate < cfg.StrategyWinRateThreshold {
		f.metrics.ObserveDelta(false, ReasonStrategyVeto, signal.QualityScore)
		return Reject(ReasonStrategyVeto)
	}

	f.metrics.ObserveDelta(true, "", signal.QualityScore)
	return Pass()
}
