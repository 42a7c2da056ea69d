package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ignitex-signal-engine/internal/engine/repository"
	"ignitex-signal-engine/internal/entity"
	"ignitex-signal-engine/pkg/logger"
)

type fakeStatRepo struct {
	mu    sync.Mutex
	stats map[string]entity.StrategyStat
}

func newFakeStatRepo() *fakeStatRepo {
	return &fakeStatRepo{stats: make(map[string]entity.StrategyStat)}
}

func (f *fakeStatRepo) FindAll(context.Context) ([]entity.StrategyStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.StrategyStat, 0, len(f.stats))
	for _, stat := range f.stats {
		out = append(out, stat)
	}
	return out, nil
}

func (f *fakeStatRepo) Upsert(_ context.Context, stat *entity.StrategyStat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := *stat
	if existing, ok := f.stats[stat.StrategyName]; ok {
		// The real upsert never touches the kill switch.
		next.Enabled = existing.Enabled
	}
	f.stats[stat.StrategyName] = next
	return nil
}

func (f *fakeStatRepo) SetEnabled(_ context.Context, strategyName string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stat, ok := f.stats[strategyName]
	if !ok {
		stat = entity.StrategyStat{StrategyName: strategyName}
	}
	stat.Enabled = enabled
	f.stats[strategyName] = stat
	return nil
}

type statsHistoryRepo struct {
	fakeHistoryRepo
	counts []repository.StrategyOutcomeCount
}

func (f *statsHistoryRepo) AggregateOutcomes(context.Context) ([]repository.StrategyOutcomeCount, error) {
	return f.counts, nil
}

func TestStrategyStatsRefreshComputesWinRates(t *testing.T) {
	statRepo := newFakeStatRepo()
	historyRepo := &statsHistoryRepo{counts: []repository.StrategyOutcomeCount{
		{StrategyName: "trend_follow_v2", Wins: 6, Losses: 4, Total: 15},
		{StrategyName: "mean_reversion", Wins: 1, Losses: 9, Total: 12},
		{StrategyName: "brand_new_strategy", Wins: 0, Losses: 0, Total: 3},
	}}
	svc := NewStrategyStatsService(statRepo, historyRepo, &logger.Logger{Logger: zap.NewNop()})

	require.NoError(t, svc.Refresh(context.Background()))

	winRate, ok := svc.WinRate("trend_follow_v2")
	require.True(t, ok)
	assert.InDelta(t, 60, winRate, 1e-9)

	winRate, ok = svc.WinRate("mean_reversion")
	require.True(t, ok)
	assert.InDelta(t, 10, winRate, 1e-9)

	// No closed outcomes yet: the veto must stay inactive.
	_, ok = svc.WinRate("brand_new_strategy")
	assert.False(t, ok)
}

func TestStrategyStatsKillSwitch(t *testing.T) {
	statRepo := newFakeStatRepo()
	historyRepo := &statsHistoryRepo{}
	svc := NewStrategyStatsService(statRepo, historyRepo, &logger.Logger{Logger: zap.NewNop()})
	ctx := context.Background()

	assert.True(t, svc.Enabled("mean_reversion"), "unknown strategies default to enabled")

	require.NoError(t, svc.SetEnabled(ctx, "mean_reversion", false))
	assert.False(t, svc.Enabled("mean_reversion"))

	require.NoError(t, svc.SetEnabled(ctx, "mean_reversion", true))
	assert.True(t, svc.Enabled("mean_reversion"))
}

func TestStrategyStatsRefreshPreservesKillSwitch(t *testing.T) {
	statRepo := newFakeStatRepo()
	historyRepo := &statsHistoryRepo{counts: []repository.StrategyOutcomeCount{
		{StrategyName: "mean_reversion", Wins: 5, Losses: 5, Total: 10},
	}}
	svc := NewStrategyStatsService(statRepo, historyRepo, &logger.Logger{Logger: zap.NewNop()})
	ctx := context.Background()

	require.NoError(t, svc.SetEnabled(ctx, "mean_reversion", false))
	require.NoError(t, svc.Refresh(ctx))

	assert.False(t, svc.Enabled("mean_reversion"), "refresh must not re-enable a disabled strategy")
	winRate, ok := svc.WinRate("mean_reversion")
	require.True(t, ok)
	assert.InDelta(t, 50, winRate, 1e-9)
}
