package repository

import (
	"context"

	"gorm.io/gorm"

	"ignitex-signal-engine/internal/entity"
)

// StrategyOutcomeCount is one strategy's aggregated win/loss tally from the
// signal history.
type StrategyOutcomeCount struct {
	StrategyName string
	Wins         int64
	Losses       int64
	Total        int64
}

type SignalHistoryRepository interface {
	Create(ctx context.Context, history *entity.SignalHistory) error
	AggregateOutcomes(ctx context.Context) ([]StrategyOutcomeCount, error)
}

type signalHistoryRepository struct {
	db *gorm.DB
}

// NewSignalHistoryRepository creates a new SignalHistoryRepository.
func NewSignalHistoryRepository(db *gorm.DB) SignalHistoryRepository {
	return &signalHistoryRepository{db: db}
}

func (r *signalHistoryRepository) Create(ctx context.Context, history *entity.SignalHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

func (r *signalHistoryRepository) AggregateOutcomes(ctx context.Context) ([]StrategyOutcomeCount, error) {
	var counts []StrategyOutcomeCount
	err := r.db.WithContext(ctx).Model(&entity.SignalHistory{}).
		Select(`strategy_name,
			COUNT(*) FILTER (WHERE outcome = ?) AS wins,
			COUNT(*) FILTER (WHERE outcome = ?) AS losses,
			COUNT(*) AS total`, entity.OutcomeWin, entity.OutcomeLoss).
		Group("strategy_name").
		Scan(&counts).Error
	return counts, err
}
