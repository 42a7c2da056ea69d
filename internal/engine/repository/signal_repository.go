package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ignitex-signal-engine/internal/entity"
)

// SignalRepository persists signals. Upsert is idempotent on the signal id so
// a publication retry after a partial failure cannot duplicate rows.
type SignalRepository interface {
	Upsert(ctx context.Context, signal *entity.Signal) error
	UpdateStatus(ctx context.Context, id string, status entity.SignalStatus) error
	UpdateStatuses(ctx context.Context, from, to entity.SignalStatus) error
	FindActive(ctx context.Context) ([]entity.Signal, error)
}

type signalRepository struct {
	db *gorm.DB
}

// NewSignalRepository creates a new SignalRepository.
func NewSignalRepository(db *gorm.DB) SignalRepository {
	return &signalRepository{db: db}
}

func (r *signalRepository) Upsert(ctx context.Context, signal *entity.Signal) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(signal).Error
}

func (r *signalRepository) UpdateStatus(ctx context.Context, id string, status entity.SignalStatus) error {
	return r.db.WithContext(ctx).Model(&entity.Signal{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *signalRepository) UpdateStatuses(ctx context.Context, from, to entity.SignalStatus) error {
	return r.db.WithContext(ctx).Model(&entity.Signal{}).
		Where("status = ?", from).
		Update("status", to).Error
}

func (r *signalRepository) FindActive(ctx context.Context) ([]entity.Signal, error) {
	var signals []entity.Signal
	err := r.db.WithContext(ctx).
		Where("status = ?", entity.StatusActive).
		Order("created_at DESC").
		Find(&signals).Error
	return signals, err
}
