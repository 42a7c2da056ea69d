package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ignitex-signal-engine/internal/entity"
)

func TestAggregatorConservationPerStage(t *testing.T) {
	agg := NewAggregator(nil)

	agg.ObserveIntake(true, "")
	agg.ObserveIntake(true, "")
	agg.ObserveIntake(false, "intake_throttled")

	agg.ObserveClassified(entity.TierHigh)
	agg.ObserveClassified(entity.TierLow)

	agg.ObserveGamma(true, "")
	agg.ObserveGamma(false, "tier_disabled")

	agg.ObserveDelta(true, "", 60)
	agg.ObserveDelta(false, "ml_threshold", 40)
	agg.ObserveDelta(false, "strategy_veto", 55)

	snapshot := agg.Snapshot()

	assert.Equal(t, snapshot.IntakeReceived, snapshot.IntakeAccepted+snapshot.IntakeRejected)
	assert.Equal(t, snapshot.BetaSignalsScored,
		snapshot.BetaHighQuality+snapshot.BetaMediumQuality+snapshot.BetaLowQuality)
	assert.Equal(t, snapshot.GammaSignalsReceived, snapshot.GammaSignalsPassed+snapshot.GammaSignalsRejected)
	assert.Equal(t, snapshot.DeltaProcessed, snapshot.DeltaPassed+snapshot.DeltaRejected)

	assert.Equal(t, int64(1), snapshot.RejectionReasons["intake_throttled"])
	assert.Equal(t, int64(1), snapshot.RejectionReasons["ml_threshold"])
	assert.Equal(t, int64(1), snapshot.RejectionReasons["strategy_veto"])
}

func TestAggregatorDeltaQualityRunningMean(t *testing.T) {
	agg := NewAggregator(nil)

	agg.ObserveDelta(true, "", 60)
	assert.InDelta(t, 60, agg.Snapshot().DeltaQualityScore, 1e-9)

	agg.ObserveDelta(false, "ml_threshold", 40)
	assert.InDelta(t, 50, agg.Snapshot().DeltaQualityScore, 1e-9)

	agg.ObserveDelta(true, "", 80)
	assert.InDelta(t, 60, agg.Snapshot().DeltaQualityScore, 1e-9)
}

func TestAggregatorSnapshotIsolation(t *testing.T) {
	agg := NewAggregator(nil)
	agg.ObserveGamma(false, "regime_mismatch")

	snapshot := agg.Snapshot()
	snapshot.RejectionReasons["regime_mismatch"] = 99
	snapshot.RejectionReasons["injected"] = 1

	fresh := agg.Snapshot()
	assert.Equal(t, int64(1), fresh.RejectionReasons["regime_mismatch"])
	assert.NotContains(t, fresh.RejectionReasons, "injected")
}

func TestAggregatorReset(t *testing.T) {
	agg := NewAggregator(nil)
	agg.ObserveIntake(true, "")
	agg.ObserveDelta(true, "", 70)
	agg.PublishingStarted()
	agg.PublishingComplete()

	agg.Reset()

	snapshot := agg.Snapshot()
	assert.Equal(t, PipelineMetrics{RejectionReasons: map[string]int64{}}, snapshot)

	// The running mean starts over, it does not blend with pre-reset scores.
	agg.ObserveDelta(true, "", 30)
	assert.InDelta(t, 30, agg.Snapshot().DeltaQualityScore, 1e-9)
}

func TestAggregatorPublishingLadderCounts(t *testing.T) {
	agg := NewAggregator(nil)

	for i := 0; i < 3; i++ {
		agg.PublishingStarted()
		agg.PublishingAddedToArray()
		agg.PublishingSavedToDB()
		agg.PublishingEventsEmitted()
		agg.PublishingComplete()
	}
	agg.PublishingStarted()
	agg.PublishingAddedToArray()
	agg.PublishingFailed()

	snapshot := agg.Snapshot()
	assert.Equal(t, int64(4), snapshot.PublishingStarted)
	assert.Equal(t, int64(4), snapshot.PublishingAddedToArray)
	assert.Equal(t, int64(3), snapshot.PublishingSavedToDB)
	assert.Equal(t, int64(3), snapshot.PublishingEventsEmitted)
	assert.Equal(t, int64(3), snapshot.PublishingComplete)
	assert.Equal(t, int64(1), snapshot.PublishingFailed)

	assert.GreaterOrEqual(t, snapshot.PublishingStarted, snapshot.PublishingAddedToArray)
	assert.GreaterOrEqual(t, snapshot.PublishingAddedToArray, snapshot.PublishingSavedToDB)
	assert.GreaterOrEqual(t, snapshot.PublishingSavedToDB, snapshot.PublishingEventsEmitted)
	assert.GreaterOrEqual(t, snapshot.PublishingEventsEmitted, snapshot.PublishingComplete)
}
