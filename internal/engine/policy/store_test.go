package policy

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ignitex-signal-engine/internal/entity"
)

type fakeSettingsRepo struct {
	values  map[string]json.RawMessage
	failing bool
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{values: make(map[string]json.RawMessage)}
}

func (f *fakeSettingsRepo) Save(_ context.Context, key string, value interface{}) error {
	if f.failing {
		return errors.New("settings store unavailable")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.values[key] = raw
	return nil
}

func (f *fakeSettingsRepo) Load(_ context.Context, key string, out interface{}) (bool, error) {
	raw, ok := f.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func TestStoreDefaults(t *testing.T) {
	store := NewStore(nil)

	thresholds := store.Thresholds()
	assert.Equal(t, 52.0, thresholds.QualityThreshold)
	assert.Equal(t, 0.50, thresholds.MLThreshold)
	assert.Equal(t, 35.0, thresholds.StrategyWinRateThreshold)

	tiers := store.TierConfig()
	assert.True(t, tiers.AcceptHigh)
	assert.True(t, tiers.AcceptMedium)
	assert.False(t, tiers.AcceptLow)
	assert.Equal(t, entity.PriorityHigh, tiers.HighPriority)

	assert.Equal(t, entity.RegimeAuto, store.RegimeOverride())
	assert.Equal(t, time.Hour, store.DropInterval(entity.SubscriptionFree))
	assert.Equal(t, 15*time.Minute, store.DropInterval(entity.SubscriptionPro))
	assert.Equal(t, time.Minute, store.DropInterval(entity.SubscriptionMax))
}

func TestStoreThresholdUpdateReadBack(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	// Balanced preset.
	require.NoError(t, store.SetThresholds(ctx, 30, 0.45, 35))

	thresholds := store.Thresholds()
	assert.Equal(t, 30.0, thresholds.QualityThreshold)
	assert.Equal(t, 0.45, thresholds.MLThreshold)
	assert.Equal(t, 35.0, thresholds.StrategyWinRateThreshold)
}

func TestStoreRejectsOutOfRangeThresholds(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	testCases := []struct {
		name                  string
		quality, ml, strategy float64
	}{
		{"negative quality", -1, 0.5, 35},
		{"quality above 100", 101, 0.5, 35},
		{"ml above 1", 50, 1.5, 35},
		{"negative ml", 50, -0.1, 35},
		{"strategy above 100", 50, 0.5, 100.5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := store.SetThresholds(ctx, tc.quality, tc.ml, tc.strategy)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Equal(t, DefaultThresholds(), store.Thresholds(), "rejected write must leave policy untouched")
		})
	}
}

func TestStoreTierConfigValidation(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	err := store.SetTierConfig(ctx, TierConfig{AcceptHigh: true, HighPriority: "URGENT"})
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, DefaultTierConfig(), store.TierConfig())

	next := TierConfig{AcceptHigh: true, AcceptLow: true, HighPriority: entity.PriorityMedium}
	require.NoError(t, store.SetTierConfig(ctx, next))
	assert.Equal(t, next, store.TierConfig())
}

func TestStoreRegimeOverrideValidation(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	require.ErrorIs(t, store.SetRegimeOverride(ctx, "BULL_MARKET"), ErrInvalidConfig)
	assert.Equal(t, entity.RegimeAuto, store.RegimeOverride())

	require.NoError(t, store.SetRegimeOverride(ctx, entity.RegimeSideways))
	assert.Equal(t, entity.RegimeSideways, store.RegimeOverride())
}

func TestStoreDropIntervalValidation(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	require.ErrorIs(t, store.SetDropInterval(ctx, "PLATINUM", time.Minute), ErrInvalidConfig)
	require.ErrorIs(t, store.SetDropInterval(ctx, entity.SubscriptionPro, 0), ErrInvalidConfig)
	require.ErrorIs(t, store.SetDropInterval(ctx, entity.SubscriptionPro, -time.Second), ErrInvalidConfig)

	require.NoError(t, store.SetDropInterval(ctx, entity.SubscriptionPro, 5*time.Minute))
	assert.Equal(t, 5*time.Minute, store.DropInterval(entity.SubscriptionPro))
	// Other tiers keep their intervals.
	assert.Equal(t, time.Hour, store.DropInterval(entity.SubscriptionFree))
}

func TestStorePersistFailureKeepsOldValue(t *testing.T) {
	repo := newFakeSettingsRepo()
	repo.failing = true
	store := NewStore(repo)
	ctx := context.Background()

	require.Error(t, store.SetThresholds(ctx, 30, 0.45, 35))
	assert.Equal(t, DefaultThresholds(), store.Thresholds())

	require.Error(t, store.SetRegimeOverride(ctx, entity.RegimeVolatile))
	assert.Equal(t, entity.RegimeAuto, store.RegimeOverride())
}

func TestStoreLoadPersistedRestoresPolicy(t *testing.T) {
	repo := newFakeSettingsRepo()
	ctx := context.Background()

	first := NewStore(repo)
	require.NoError(t, first.SetThresholds(ctx, 30, 0.45, 40))
	require.NoError(t, first.SetRegimeOverride(ctx, entity.RegimeTrendingUp))
	require.NoError(t, first.SetDropInterval(ctx, entity.SubscriptionMax, 30*time.Second))

	second := NewStore(repo)
	require.NoError(t, second.LoadPersisted(ctx))

	assert.Equal(t, first.Thresholds(), second.Thresholds())
	assert.Equal(t, entity.RegimeTrendingUp, second.RegimeOverride())
	assert.Equal(t, 30*time.Second, second.DropInterval(entity.SubscriptionMax))
	// Keys never written keep their defaults.
	assert.Equal(t, DefaultTierConfig(), second.TierConfig())
	assert.Equal(t, time.Hour, second.DropInterval(entity.SubscriptionFree))
}
