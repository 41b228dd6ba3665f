package repository

import (
	"allocation-service/internal/models"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReferenceRepo interface {
	ListZones(ctx context.Context) ([]models.Zone, error)
	ListPincodes(ctx context.Context) ([]models.Pincode, error)
	ListWarehouses(ctx context.Context) ([]models.Warehouse, error)

	UpsertZones(ctx context.Context, zones []models.Zone) error
	UpsertPincodes(ctx context.Context, pins []models.Pincode) error
	// UpsertWarehouse replaces the warehouse's serviceable zones with w.Zones.
	UpsertWarehouse(ctx context.Context, w *models.Warehouse) error
}

type referenceRepo struct{ db *gorm.DB }

func NewReferenceRepo(db *gorm.DB) ReferenceRepo { return &referenceRepo{db: db} }

func (r *referenceRepo) ListZones(ctx context.Context) ([]models.Zone, error) {
	var list []models.Zone
	err := r.db.WithContext(ctx).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *referenceRepo) ListPincodes(ctx context.Context) ([]models.Pincode, error) {
	var list []models.Pincode
	err := r.db.WithContext(ctx).Order("code ASC").Find(&list).Error
	return list, err
}

func (r *referenceRepo) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	var list []models.Warehouse
	err := r.db.WithContext(ctx).
		Preload("Zones", func(db *gorm.DB) *gorm.DB { return db.Order("zone_id ASC") }).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

func (r *referenceRepo) UpsertZones(ctx context.Context, zones []models.Zone) error {
	if len(zones) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "city", "state"}),
		}).
		Create(&zones).Error
}

func (r *referenceRepo) UpsertPincodes(ctx context.Context, pins []models.Pincode) error {
	if len(pins) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"zone_id", "deliverable", "delivery_days", "cod_available"}),
		}).
		Create(&pins).Error
}

func (r *referenceRepo) UpsertWarehouse(ctx context.Context, w *models.Warehouse) error {
	zones := w.Zones
	row := *w
	row.Zones = nil

	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{"name": row.Name, "type": row.Type, "is_active": row.IsActive, "updated_at": gorm.Expr("now()")}),
	}).Create(&row).Error; err != nil {
		return err
	}

	if err := db.Where("warehouse_id = ?", w.ID).Delete(&models.WarehouseZone{}).Error; err != nil {
		return err
	}
	if len(zones) == 0 {
		return nil
	}
	links := make([]models.WarehouseZone, 0, len(zones))
	for _, z := range zones {
		links = append(links, models.WarehouseZone{WarehouseID: w.ID, ZoneID: z.ZoneID})
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
}
