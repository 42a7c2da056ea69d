package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ignitex-signal-engine/internal/entity"
)

type StrategyStatRepository interface {
	FindAll(ctx context.Context) ([]entity.StrategyStat, error)
	Upsert(ctx context.Context, stat *entity.StrategyStat) error
	SetEnabled(ctx context.Context, strategyName string, enabled bool) error
}

type strategyStatRepository struct {
	db *gorm.DB
}

// NewStrategyStatRepository creates a new StrategyStatRepository.
func NewStrategyStatRepository(db *gorm.DB) StrategyStatRepository {
	return &strategyStatRepository{db: db}
}

func (r *strategyStatRepository) FindAll(ctx context.Context) ([]entity.StrategyStat, error) {
	var stats []entity.StrategyStat
	err := r.db.WithContext(ctx).Order("strategy_name").Find(&stats).Error
	return stats, err
}

func (r *strategyStatRepository) Upsert(ctx context.Context, stat *entity.StrategyStat) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "strategy_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"wins", "losses", "total_signals", "win_rate", "updated_at"}),
	}).Create(stat).Error
}

func (r *strategyStatRepository) SetEnabled(ctx context.Context, strategyName string, enabled bool) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "strategy_name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"enabled": enabled}),
	}).Create(&entity.StrategyStat{StrategyName: strategyName, Enabled: enabled}).Error
}
