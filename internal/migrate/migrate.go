package migrate

import (
	"allocation-service/internal/models"
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MigrateOptions struct {
	CreateExtensions       bool // pgcrypto
	CreateChecks           bool // CHECK-constraint'ы
	CreateIndexes          bool // индексы
	CreateFKsViaSQL        bool // FK через Exec после AutoMigrate
	CreateUpdatedAtTrigger bool // триггеры updated_at
}

func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		CreateExtensions:       true,
		CreateChecks:           true,
		CreateIndexes:          true,
		CreateFKsViaSQL:        true,
		CreateUpdatedAtTrigger: true,
	}
}

type step struct {
	name string
	sql  string
}

func exec(ctx context.Context, db *gorm.DB, log *zap.Logger, steps []step) error {
	for _, s := range steps {
		if err := db.WithContext(ctx).Exec(s.sql).Error; err != nil {
			log.Error("migration step failed", zap.String("step", s.name), zap.Error(err))
			return err
		}
	}
	return nil
}

func MigrateAllocationDB(ctx context.Context, db *gorm.DB, log *zap.Logger, opt MigrateOptions) error {
	log.Info("Начало миграции базы складов и резервов")

	if opt.CreateExtensions {
		log.Info("Создание расширений PostgreSQL")
		if err := exec(ctx, db, log, []step{
			{"pgcrypto", `CREATE EXTENSION IF NOT EXISTS pgcrypto`},
		}); err != nil {
			return err
		}
	}

	log.Info("Создание таблиц")
	if err := db.WithContext(ctx).AutoMigrate(
		&models.Zone{},
		&models.Pincode{},
		&models.Warehouse{},
		&models.WarehouseZone{},
		&models.Product{},
		&models.Variant{},
		&models.StockRecord{},
		&models.Reservation{},
		&models.StockMovement{},
	); err != nil {
		log.Error("AutoMigrate error", zap.Error(err))
		return err
	}

	if opt.CreateUpdatedAtTrigger {
		log.Info("Создание триггеров updated_at")
		if err := exec(ctx, db, log, []step{{"updated_at triggers", `
CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
BEGIN NEW.updated_at = now(); RETURN NEW; END; $$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_warehouses_updated ON warehouses;
CREATE TRIGGER trg_warehouses_updated BEFORE UPDATE ON warehouses
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_products_updated ON products;
CREATE TRIGGER trg_products_updated BEFORE UPDATE ON products
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_stock_records_updated ON stock_records;
CREATE TRIGGER trg_stock_records_updated BEFORE UPDATE ON stock_records
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_reservations_updated ON reservations;
CREATE TRIGGER trg_reservations_updated BEFORE UPDATE ON reservations
FOR EACH ROW EXECUTE FUNCTION set_updated_at();
`}}); err != nil {
			return err
		}
	}

	if opt.CreateChecks {
		log.Info("Создание CHECK-ограничений")
		if err := exec(ctx, db, log, []step{
			{"chk pincode format", `
ALTER TABLE pincodes
	DROP CONSTRAINT IF EXISTS chk_pincodes_format,
	ADD CONSTRAINT chk_pincodes_format
	CHECK (code ~ '^[1-9][0-9]{5}$');`},
			{"chk warehouse type", `
ALTER TABLE warehouses
	DROP CONSTRAINT IF EXISTS chk_warehouses_type_allowed,
	ADD CONSTRAINT chk_warehouses_type_allowed
	CHECK (type IN ('local','zonal','central'));`},
			{"chk product money", `
ALTER TABLE products
	DROP CONSTRAINT IF EXISTS chk_products_money_non_negative,
	ADD CONSTRAINT chk_products_money_non_negative
	CHECK (price >= 0 AND shipping_per_unit >= 0);`},
			// главное ограничение: 0 <= reserved <= on_hand
			{"chk stock", `
ALTER TABLE stock_records
	DROP CONSTRAINT IF EXISTS chk_stock_records_bounds,
	ADD CONSTRAINT chk_stock_records_bounds
	CHECK (on_hand >= 0 AND reserved >= 0 AND reserved <= on_hand);`},
			{"chk reservations qty", `
ALTER TABLE reservations
	DROP CONSTRAINT IF EXISTS chk_reservations_quantity_gt_zero,
	ADD CONSTRAINT chk_reservations_quantity_gt_zero
	CHECK (quantity > 0);`},
			{"chk reservations state", `
ALTER TABLE reservations
	DROP CONSTRAINT IF EXISTS chk_reservations_state_allowed,
	ADD CONSTRAINT chk_reservations_state_allowed
	CHECK (state IN ('held','confirmed','released'));`},
			{"chk movements kind", `
ALTER TABLE stock_movements
	DROP CONSTRAINT IF EXISTS chk_stock_movements_kind_allowed,
	ADD CONSTRAINT chk_stock_movements_kind_allowed
	CHECK (kind IN ('adjust','reserve','release','confirm'));`},
		}); err != nil {
			return err
		}
	}

	if opt.CreateIndexes {
		log.Info("Создание индексов")
		if err := exec(ctx, db, log, []step{
			// sweeper: held + created_at
			{"ix reservations held", `
CREATE INDEX IF NOT EXISTS ix_reservations_held_created
ON reservations (created_at) WHERE state = 'held';`},
			{"ix reservations order", `
CREATE INDEX IF NOT EXISTS ix_reservations_order_created
ON reservations (order_token, created_at);`},
			{"ix movements warehouse", `
CREATE INDEX IF NOT EXISTS ix_stock_movements_warehouse_created
ON stock_movements (warehouse_id, created_at DESC);`},
		}); err != nil {
			return err
		}
	}

	if opt.CreateFKsViaSQL {
		log.Info("Создание внешних ключей")
		if err := exec(ctx, db, log, []step{
			{"fk pincodes.zone_id", `
ALTER TABLE pincodes
  DROP CONSTRAINT IF EXISTS fk_pincodes_zone,
  ADD CONSTRAINT fk_pincodes_zone
    FOREIGN KEY (zone_id) REFERENCES zones(id) ON DELETE RESTRICT;`},
			{"fk warehouse_zones.warehouse_id", `
ALTER TABLE warehouse_zones
  DROP CONSTRAINT IF EXISTS fk_warehouse_zones_warehouse,
  ADD CONSTRAINT fk_warehouse_zones_warehouse
    FOREIGN KEY (warehouse_id) REFERENCES warehouses(id) ON DELETE CASCADE;`},
			{"fk warehouse_zones.zone_id", `
ALTER TABLE warehouse_zones
  DROP CONSTRAINT IF EXISTS fk_warehouse_zones_zone,
  ADD CONSTRAINT fk_warehouse_zones_zone
    FOREIGN KEY (zone_id) REFERENCES zones(id) ON DELETE CASCADE;`},
			{"fk product_variants.product_id", `
ALTER TABLE product_variants
  DROP CONSTRAINT IF EXISTS fk_product_variants_product,
  ADD CONSTRAINT fk_product_variants_product
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE;`},
			{"fk stock_records.warehouse_id", `
ALTER TABLE stock_records
  DROP CONSTRAINT IF EXISTS fk_stock_records_warehouse,
  ADD CONSTRAINT fk_stock_records_warehouse
    FOREIGN KEY (warehouse_id) REFERENCES warehouses(id) ON DELETE RESTRICT;`},
			{"fk reservations.warehouse_id", `
ALTER TABLE reservations
  DROP CONSTRAINT IF EXISTS fk_reservations_warehouse,
  ADD CONSTRAINT fk_reservations_warehouse
    FOREIGN KEY (warehouse_id) REFERENCES warehouses(id) ON DELETE RESTRICT;`},
		}); err != nil {
			return err
		}
	}

	log.Info("Миграция базы складов и резервов успешно завершена")
	return nil
}
