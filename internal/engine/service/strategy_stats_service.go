package service

import (
	"context"
	"sync"
	"time"

	"ignitex-signal-engine/internal/engine/repository"
	"ignitex-signal-engine/internal/entity"
	"ignitex-signal-engine/pkg/logger"
)

// StrategyStatsService maintains the in-memory strategy win-rate table the
// quality filter vetoes against, and the per-strategy kill switch consulted
// before classification.
type StrategyStatsService interface {
	WinRate(strategyName string) (float64, bool)
	Enabled(strategyName string) bool
	SetEnabled(ctx context.Context, strategyName string, enabled bool) error
	Refresh(ctx context.Context) error
	All(ctx context.Context) ([]entity.StrategyStat, error)
}

// NewStrategyStatsService creates a new StrategyStatsService.
func NewStrategyStatsService(
	statRepo repository.StrategyStatRepository,
	historyRepo repository.SignalHistoryRepository,
	log *logger.Logger,
) StrategyStatsService {
	return &strategyStatsService{
		statRepo:    statRepo,
		historyRepo: historyRepo,
		logger:      log,
		winRates:    make(map[string]float64),
		disabled:    make(map[string]bool),
	}
}

type strategyStatsService struct {
	statRepo    repository.StrategyStatRepository
	historyRepo repository.SignalHistoryRepository
	logger      *logger.Logger

	mu       sync.RWMutex
	winRates map[string]float64
	disabled map[string]bool
}

// WinRate returns a strategy's historical win rate in [0,100]. The second
// return is false when the strategy has no closed history yet, in which case
// the veto does not apply.
func (s *strategyStatsService) WinRate(strategyName string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	winRate, ok := s.winRates[strategyName]
	return winRate, ok
}

// Enabled reports the kill-switch state. Unknown strategies are enabled.
func (s *strategyStatsService) Enabled(strategyName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.disabled[strategyName]
}

// SetEnabled persists the kill switch and updates the in-memory view.
func (s *strategyStatsService) SetEnabled(ctx context.Context, strategyName string, enabled bool) error {
	if err := s.statRepo.SetEnabled(ctx, strategyName, enabled); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if enabled {
		delete(s.disabled, strategyName)
	} else {
		s.disabled[strategyName] = true
	}
	return nil
}

// Refresh recomputes win rates from the signal history, persists them, and
// swaps the in-memory table. Strategies without closed outcomes keep no
// entry, so the veto stays inactive for them.
func (s *strategyStatsService) Refresh(ctx context.Context) error {
	counts, err := s.historyRepo.AggregateOutcomes(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	next := make(map[string]float64, len(counts))
	for _, count := range counts {
		closed := count.Wins + count.Losses
		if closed == 0 {
			continue
		}
		winRate := float64(count.Wins) / float64(closed) * 100

		next[count.StrategyName] = winRate

		stat := &entity.StrategyStat{
			StrategyName: count.StrategyName,
			Enabled:      true,
			Wins:         count.Wins,
			Losses:       count.Losses,
			TotalSignals: count.Total,
			WinRate:      winRate,
			UpdatedAt:    now,
		}
		if err := s.statRepo.Upsert(ctx, stat); err != nil {
			s.logger.Error("Failed to persist strategy stats",
				logger.ErrorField(err), logger.Field("strategy", count.StrategyName))
		}
	}

	// Preserve kill switches set before any history existed.
	stats, err := s.statRepo.FindAll(ctx)
	if err != nil {
		return err
	}
	nextDisabled := make(map[string]bool)
	for _, stat := range stats {
		if !stat.Enabled {
			nextDisabled[stat.StrategyName] = true
		}
	}

	s.mu.Lock()
	s.winRates = next
	s.disabled = nextDisabled
	s.mu.Unlock()

	return nil
}

// All returns the persisted stats for the control surface.
func (s *strategyStatsService) All(ctx context.Context) ([]entity.StrategyStat, error) {
	return s.statRepo.FindAll(ctx)
}
