package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"

	"ignitex-signal-engine/internal/entity"
)

func TestFormatSignal(t *testing.T) {
	signal := &entity.Signal{
		Symbol:         "BTCUSDT",
		Direction:      entity.DirectionLong,
		StrategyName:   "trend_follow_v2",
		EntryPrice:     64250,
		StopLoss:       62500,
		Targets:        datatypes.JSONSlice[float64]{65000, 66500},
		Confidence:     85,
		WinProbability: 0.62,
		Tier:           entity.TierHigh,
	}

	msg := FormatSignal(signal)

	assert.Contains(t, msg, "⚡ *HIGH Signal* | BTCUSDT")
	assert.Contains(t, msg, "🟢 LONG | strategy `trend_follow_v2`")
	assert.Contains(t, msg, "Entry: `64250`")
	assert.Contains(t, msg, "Stop: `62500`")
	assert.Contains(t, msg, "TP1: `65000`")
	assert.Contains(t, msg, "TP2: `66500`")
	assert.Contains(t, msg, "Confidence: 85% | Win probability: 62%")
}

func TestFormatSignalShortWithoutStop(t *testing.T) {
	signal := &entity.Signal{
		Symbol:         "ETHUSDT",
		Direction:      entity.DirectionShort,
		StrategyName:   "mean_reversion",
		EntryPrice:     3100.5,
		Targets:        datatypes.JSONSlice[float64]{3000},
		Confidence:     60,
		WinProbability: 0.55,
		Tier:           entity.TierMedium,
	}

	msg := FormatSignal(signal)

	assert.Contains(t, msg, "⚡ *MEDIUM Signal* | ETHUSDT")
	assert.Contains(t, msg, "🔴 SHORT")
	assert.NotContains(t, msg, "Stop:")
}
