package repository

import (
	"allocation-service/internal/models"
	"context"

	"gorm.io/gorm"
)

const defaultMovementLimit = 100

type MovementRepo interface {
	Create(ctx context.Context, m *models.StockMovement) error
	List(ctx context.Context, f models.MovementFilter) ([]models.StockMovement, error)
}

type movementRepo struct{ db *gorm.DB }

func NewMovementRepo(db *gorm.DB) MovementRepo { return &movementRepo{db: db} }

func (r *movementRepo) Create(ctx context.Context, m *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *movementRepo) List(ctx context.Context, f models.MovementFilter) ([]models.StockMovement, error) {
	q := r.db.WithContext(ctx).Model(&models.StockMovement{})
	if f.WarehouseID != "" {
		q = q.Where("warehouse_id = ?", f.WarehouseID)
	}
	if f.SKUID != "" {
		q = q.Where("sku_id = ?", f.SKUID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultMovementLimit
	}
	var list []models.StockMovement
	err := q.Order("created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}
