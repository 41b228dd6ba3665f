package models

// WarehouseSummary is a read-only dashboard row.
type WarehouseSummary struct {
	WarehouseID      string        `json:"warehouse_id"`
	Name             string        `json:"name"`
	Type             WarehouseType `json:"type"`
	SKUCount         int64         `json:"sku_count"`
	OnHand           int64         `json:"on_hand"`
	Reserved         int64         `json:"reserved"`
	HeldReservations int64         `json:"held_reservations"`
}

func (s WarehouseSummary) Available() int64 { return s.OnHand - s.Reserved }

type MovementFilter struct {
	WarehouseID string
	SKUID       string
	Limit       int
}

const (
	DefaultStockLimit = 500
	MaxStockLimit     = 5000
)

// StockFilter selects stock rows. ProductID matches the base product and
// every variant of it.
type StockFilter struct {
	WarehouseID string
	ProductID   string
	InStockOnly bool
	Limit       int
}

func (f StockFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultStockLimit
	case f.Limit > MaxStockLimit:
		return MaxStockLimit
	}
	return f.Limit
}

// ReferenceData is the bulk import payload for zones, pincodes, warehouses and catalog.
type ReferenceData struct {
	Zones      []Zone      `json:"zones"`
	Pincodes   []Pincode   `json:"pincodes"`
	Warehouses []Warehouse `json:"warehouses"`
	Products   []Product   `json:"products"`
}
