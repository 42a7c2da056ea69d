package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ignitex-signal-engine/internal/entity"
)

// ErrInvalidConfig marks an operator write outside a setting's valid domain.
// The previous configuration stays untouched when it is returned.
var ErrInvalidConfig = errors.New("invalid configuration")

// Settings keys under which the store persists operator policy.
const (
	settingThresholds     = "thresholds"
	settingTierConfig     = "tier_config"
	settingRegimeOverride = "regime_override"
	settingDropIntervals  = "drop_intervals"
)

// SettingsRepository persists policy values. Save must commit before
// returning so a successful setter is durable before the next read sees it.
type SettingsRepository interface {
	Save(ctx context.Context, key string, value interface{}) error
	Load(ctx context.Context, key string, out interface{}) (bool, error)
}

// Store holds the engine's runtime policy. Writes validate, persist, then
// swap under the lock; reads always see the last fully committed value.
type Store struct {
	mu             sync.RWMutex
	thresholds     ThresholdConfig
	tiers          TierConfig
	regimeOverride entity.MarketRegime
	intervals      map[entity.SubscriptionTier]time.Duration

	repo SettingsRepository
}

// NewStore creates a Store initialized to the documented defaults. repo may
// be nil, in which case policy lives only in memory.
func NewStore(repo SettingsRepository) *Store {
	return &Store{
		thresholds:     DefaultThresholds(),
		tiers:          DefaultTierConfig(),
		regimeOverride: entity.RegimeAuto,
		intervals:      DefaultDropIntervals(),
		repo:           repo,
	}
}

// LoadPersisted restores any previously saved policy, keeping defaults for
// keys never written.
func (s *Store) LoadPersisted(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var thresholds ThresholdConfig
	if found, err := s.repo.Load(ctx, settingThresholds, &thresholds); err != nil {
		return err
	} else if found {
		s.thresholds = thresholds
	}

	var tiers TierConfig
	if found, err := s.repo.Load(ctx, settingTierConfig, &tiers); err != nil {
		return err
	} else if found {
		s.tiers = tiers
	}

	var override entity.MarketRegime
	if found, err := s.repo.Load(ctx, settingRegimeOverride, &override); err != nil {
		return err
	} else if found {
		s.regimeOverride = override
	}

	intervals := map[entity.SubscriptionTier]int64{}
	if found, err := s.repo.Load(ctx, settingDropIntervals, &intervals); err != nil {
		return err
	} else if found {
		for tier, ms := range intervals {
			if ms > 0 {
				s.intervals[tier] = time.Duration(ms) * time.Millisecond
			}
		}
	}

	return nil
}

// Thresholds returns the current threshold policy.
func (s *Store) Thresholds() ThresholdConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds
}

// SetThresholds validates bounds, persists, and swaps the threshold policy.
func (s *Store) SetThresholds(ctx context.Context, quality, ml, strategyWinRate float64) error {
	if quality < 0 || quality > 100 {
		return fmt.Errorf("%w: quality threshold %v out of [0,100]", ErrInvalidConfig, quality)
	}
	if ml < 0 || ml > 1 {
		return fmt.Errorf("%w: ml threshold %v out of [0,1]", ErrInvalidConfig, ml)
	}
	if strategyWinRate < 0 || strategyWinRate > 100 {
		return fmt.Errorf("%w: strategy win rate threshold %v out of [0,100]", ErrInvalidConfig, strategyWinRate)
	}

	next := ThresholdConfig{
		QualityThreshold:         quality,
		MLThreshold:              ml,
		StrategyWinRateThreshold: strategyWinRate,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx, settingThresholds, next); err != nil {
		return err
	}
	s.thresholds = next
	return nil
}

// TierConfig returns the current tier gating policy.
func (s *Store) TierConfig() TierConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tiers
}

// SetTierConfig validates, persists, and swaps the tier gating policy.
func (s *Store) SetTierConfig(ctx context.Context, cfg TierConfig) error {
	if cfg.HighPriority != entity.PriorityHigh && cfg.HighPriority != entity.PriorityMedium {
		return fmt.Errorf("%w: high priority must be HIGH or MEDIUM, got %q", ErrInvalidConfig, cfg.HighPriority)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx, settingTierConfig, cfg); err != nil {
		return err
	}
	s.tiers = cfg
	return nil
}

// RegimeOverride returns the operator regime override; RegimeAuto means the
// detected regime applies.
func (s *Store) RegimeOverride() entity.MarketRegime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regimeOverride
}

// SetRegimeOverride validates, persists, and swaps the regime override.
func (s *Store) SetRegimeOverride(ctx context.Context, regime entity.MarketRegime) error {
	switch regime {
	case entity.RegimeAuto, entity.RegimeTrendingUp, entity.RegimeTrendingDown, entity.RegimeSideways, entity.RegimeVolatile:
	default:
		return fmt.Errorf("%w: unknown regime %q", ErrInvalidConfig, regime)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx, settingRegimeOverride, regime); err != nil {
		return err
	}
	s.regimeOverride = regime
	return nil
}

// DropInterval returns the publication interval for a subscription tier.
func (s *Store) DropInterval(tier entity.SubscriptionTier) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.intervals[tier]
}

// DropIntervals returns a copy of all tier intervals.
func (s *Store) DropIntervals() map[entity.SubscriptionTier]time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[entity.SubscriptionTier]time.Duration, len(s.intervals))
	for tier, interval := range s.intervals {
		out[tier] = interval
	}
	return out
}

// SetDropInterval updates one tier's publication interval. The change applies
// on the next scheduling decision; it never rewrites a tier's last-published
// timestamp.
func (s *Store) SetDropInterval(ctx context.Context, tier entity.SubscriptionTier, interval time.Duration) error {
	switch tier {
	case entity.SubscriptionFree, entity.SubscriptionPro, entity.SubscriptionMax:
	default:
		return fmt.Errorf("%w: unknown subscription tier %q", ErrInvalidConfig, tier)
	}
	if interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalidConfig, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[entity.SubscriptionTier]int64, len(s.intervals))
	for t, d := range s.intervals {
		next[t] = d.Milliseconds()
	}
	next[tier] = interval.Milliseconds()

	if err := s.persist(ctx, settingDropIntervals, next); err != nil {
		return err
	}
	s.intervals[tier] = interval
	return nil
}

func (s *Store) persist(ctx context.Context, key string, value interface{}) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Save(ctx, key, value)
}
