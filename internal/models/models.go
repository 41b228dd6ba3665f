package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name            string          `gorm:"type:text;not null" json:"name"`
	Price           decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"price"`
	ShippingPerUnit decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"shipping_per_unit"`
	IsActive        bool            `gorm:"not null" json:"is_active"`
	Variants        []Variant       `gorm:"foreignKey:ProductID" json:"variants,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// Variant is an allocation unit in its own right; a nil Price inherits the product price.
type Variant struct {
	ID        uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductID uuid.UUID        `gorm:"type:uuid;not null;index" json:"product_id"`
	Label     string           `gorm:"type:text;not null" json:"label"`
	Price     *decimal.Decimal `gorm:"type:numeric(12,2)" json:"price,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Variant) TableName() string {
	return "product_variants"
}

type Zone struct {
	ID    string `gorm:"type:text;primaryKey" json:"zone_id"`
	Name  string `gorm:"type:text;not null" json:"zone_name"`
	City  string `gorm:"type:text;not null;default:''" json:"city"`
	State string `gorm:"type:text;not null;default:''" json:"state"`
}

func (Zone) TableName() string {
	return "zones"
}

type Pincode struct {
	Code         string `gorm:"type:char(6);primaryKey" json:"pincode"`
	ZoneID       string `gorm:"type:text;not null;index" json:"zone_id"`
	Deliverable  bool   `gorm:"not null" json:"deliverable"`
	DeliveryDays int    `gorm:"not null;default:0" json:"delivery_days"`
	CODAvailable bool   `gorm:"not null;default:false" json:"cod_available"`
}

func (Pincode) TableName() string {
	return "pincodes"
}

type WarehouseType string

const (
	WarehouseLocal   WarehouseType = "local"
	WarehouseZonal   WarehouseType = "zonal"
	WarehouseCentral WarehouseType = "central"
)

// Rank gives the fallback position: local first, central last.
func (t WarehouseType) Rank() int {
	switch t {
	case WarehouseLocal:
		return 0
	case WarehouseZonal:
		return 1
	case WarehouseCentral:
		return 2
	default:
		return 3
	}
}

func (t WarehouseType) Valid() bool {
	return t.Rank() < 3
}

type Warehouse struct {
	ID       string          `gorm:"type:text;primaryKey" json:"id"`
	Name     string          `gorm:"type:text;not null" json:"name"`
	Type     WarehouseType   `gorm:"type:text;not null;index" json:"type"`
	IsActive bool            `gorm:"not null" json:"is_active"`
	Zones    []WarehouseZone `gorm:"foreignKey:WarehouseID" json:"zones,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Warehouse) TableName() string {
	return "warehouses"
}

func (w Warehouse) Serves(zoneID string) bool {
	for _, z := range w.Zones {
		if z.ZoneID == zoneID {
			return true
		}
	}
	return false
}

type WarehouseZone struct {
	WarehouseID string `gorm:"type:text;primaryKey" json:"warehouse_id"`
	ZoneID      string `gorm:"type:text;primaryKey;index" json:"zone_id"`
}

func (WarehouseZone) TableName() string {
	return "warehouse_zones"
}

type StockRecord struct {
	SKUID       string `gorm:"column:sku_id;type:text;primaryKey" json:"sku_id"`
	WarehouseID string `gorm:"type:text;primaryKey;index" json:"warehouse_id"`
	OnHand      int64  `gorm:"not null;default:0" json:"on_hand"`
	Reserved    int64  `gorm:"not null;default:0" json:"reserved"`

	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (StockRecord) TableName() string {
	return "stock_records"
}

func (s StockRecord) Available() int64 {
	return s.OnHand - s.Reserved
}

type ReservationState string

const (
	ReservationHeld      ReservationState = "held"
	ReservationConfirmed ReservationState = "confirmed"
	ReservationReleased  ReservationState = "released"
)

func (s ReservationState) Terminal() bool {
	return s == ReservationConfirmed || s == ReservationReleased
}

type Reservation struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"reservation_id"`
	OrderToken  string           `gorm:"type:text;not null;index" json:"order_token"`
	SKUID       string           `gorm:"column:sku_id;type:text;not null;index:ix_reservations_sku_warehouse" json:"sku_id"`
	WarehouseID string           `gorm:"type:text;not null;index:ix_reservations_sku_warehouse" json:"warehouse_id"`
	Quantity    int64            `gorm:"not null" json:"quantity"`
	State       ReservationState `gorm:"type:text;not null;default:'held';index" json:"state"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Reservation) TableName() string {
	return "reservations"
}

type MovementKind string

const (
	MovementAdjust  MovementKind = "adjust"
	MovementReserve MovementKind = "reserve"
	MovementRelease MovementKind = "release"
	MovementConfirm MovementKind = "confirm"
)

// StockMovement is the append-only audit trail of every stock mutation.
type StockMovement struct {
	ID            uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SKUID         string       `gorm:"column:sku_id;type:text;not null;index" json:"sku_id"`
	WarehouseID   string       `gorm:"type:text;not null;index" json:"warehouse_id"`
	Kind          MovementKind `gorm:"type:text;not null" json:"kind"`
	Quantity      int64        `gorm:"not null" json:"quantity"`
	ReservationID *uuid.UUID   `gorm:"type:uuid" json:"reservation_id,omitempty"`
	Note          string       `gorm:"type:text;not null;default:''" json:"note,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (StockMovement) TableName() string {
	return "stock_movements"
}
