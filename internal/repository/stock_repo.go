package repository

import (
	"allocation-service/internal/models"
	"context"
	"errors"

	"gorm.io/gorm"
)

type StockRepo interface {
	Get(ctx context.Context, skuID, warehouseID string) (*models.StockRecord, error)
	List(ctx context.Context, f models.StockFilter) ([]models.StockRecord, error)
	// AdjustOnHand: on_hand += delta, if on_hand + delta >= reserved.
	// A positive delta creates the row when it is missing.
	AdjustOnHand(ctx context.Context, skuID, warehouseID string, delta int64) (bool, error)

	// TryReserve: if on_hand - reserved >= qty then reserved += qty (одним UPDATE)
	TryReserve(ctx context.Context, skuID, warehouseID string, qty int64) (bool, error)
	// Release: reserved -= qty
	Release(ctx context.Context, skuID, warehouseID string, qty int64) (bool, error)
	// Confirm: on_hand -= qty; reserved -= qty
	Confirm(ctx context.Context, skuID, warehouseID string, qty int64) (bool, error)

	Summaries(ctx context.Context, warehouseID string) ([]models.WarehouseSummary, error)
}

type stockRepo struct{ db *gorm.DB }

func NewStockRepo(db *gorm.DB) StockRepo { return &stockRepo{db: db} }

func (r *stockRepo) Get(ctx context.Context, skuID, warehouseID string) (*models.StockRecord, error) {
	var rec models.StockRecord
	err := r.db.WithContext(ctx).First(&rec, "sku_id = ? AND warehouse_id = ?", skuID, warehouseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *stockRepo) List(ctx context.Context, f models.StockFilter) ([]models.StockRecord, error) {
	q := r.db.WithContext(ctx).Model(&models.StockRecord{})
	if f.WarehouseID != "" {
		q = q.Where("warehouse_id = ?", f.WarehouseID)
	}
	if f.ProductID != "" {
		q = q.Where("(sku_id = ? OR sku_id LIKE ?)", f.ProductID, f.ProductID+":%")
	}
	if f.InStockOnly {
		q = q.Where("on_hand > reserved")
	}
	var list []models.StockRecord
	err := q.Order("sku_id ASC").Order("warehouse_id ASC").
		Limit(f.EffectiveLimit()).
		Find(&list).Error
	return list, err
}

func (r *stockRepo) AdjustOnHand(ctx context.Context, skuID, warehouseID string, delta int64) (bool, error) {
	args := map[string]any{
		"sku":   skuID,
		"wh":    warehouseID,
		"delta": delta,
	}
	if delta >= 0 {
		tx := r.db.WithContext(ctx).Exec(`
INSERT INTO stock_records (sku_id, warehouse_id, on_hand, reserved, updated_at)
VALUES (@sku, @wh, @delta, 0, now())
ON CONFLICT (sku_id, warehouse_id) DO UPDATE
SET on_hand    = stock_records.on_hand + EXCLUDED.on_hand,
    updated_at = now()
`, args)
		return tx.Error == nil, tx.Error
	}
	tx := r.db.WithContext(ctx).Exec(`
UPDATE stock_records
SET on_hand    = on_hand + @delta,
    updated_at = now()
WHERE sku_id = @sku
  AND warehouse_id = @wh
  AND on_hand + @delta >= reserved
`, args)
	return tx.RowsAffected > 0, tx.Error
}

func (r *stockRepo) TryReserve(ctx context.Context, skuID, warehouseID string, qty int64) (bool, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE stock_records
SET reserved   = reserved + @q,
    updated_at = now()
WHERE sku_id = @sku
  AND warehouse_id = @wh
  AND on_hand - reserved >= @q
`, map[string]any{
		"sku": skuID,
		"wh":  warehouseID,
		"q":   qty,
	})
	return tx.RowsAffected > 0, tx.Error
}

func (r *stockRepo) Release(ctx context.Context, skuID, warehouseID string, qty int64) (bool, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE stock_records
SET reserved   = reserved - @q,
    updated_at = now()
WHERE sku_id = @sku
  AND warehouse_id = @wh
  AND reserved >= @q
`, map[string]any{
		"sku": skuID,
		"wh":  warehouseID,
		"q":   qty,
	})
	return tx.RowsAffected > 0, tx.Error
}

func (r *stockRepo) Confirm(ctx context.Context, skuID, warehouseID string, qty int64) (bool, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE stock_records
SET on_hand    = on_hand - @q,
    reserved   = reserved - @q,
    updated_at = now()
WHERE sku_id = @sku
  AND warehouse_id = @wh
  AND reserved >= @q
  AND on_hand >= @q
`, map[string]any{
		"sku": skuID,
		"wh":  warehouseID,
		"q":   qty,
	})
	return tx.RowsAffected > 0, tx.Error
}

func (r *stockRepo) Summaries(ctx context.Context, warehouseID string) ([]models.WarehouseSummary, error) {
	var list []models.WarehouseSummary
	err := r.db.WithContext(ctx).Raw(`
SELECT w.id   AS warehouse_id,
       w.name AS name,
       w.type AS type,
       COUNT(s.sku_id)               AS sku_count,
       COALESCE(SUM(s.on_hand), 0)   AS on_hand,
       COALESCE(SUM(s.reserved), 0)  AS reserved,
       (SELECT COUNT(*) FROM reservations r
         WHERE r.warehouse_id = w.id AND r.state = 'held') AS held_reservations
FROM warehouses w
LEFT JOIN stock_records s ON s.warehouse_id = w.id
WHERE (@wh = '' OR w.id = @wh)
GROUP BY w.id, w.name, w.type
ORDER BY w.id ASC
`, map[string]any{"wh": warehouseID}).Scan(&list).Error
	return list, err
}
