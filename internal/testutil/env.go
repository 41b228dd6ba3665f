// Package testutil wires the in-memory stack with a small fixed catalogue.
package testutil

import (
	"allocation-service/internal/allocation"
	"allocation-service/internal/models"
	"allocation-service/internal/pincode"
	"allocation-service/internal/repository/memory"
	"allocation-service/internal/reservation"
	"allocation-service/internal/warehouse"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	PincodeBLR       = "560001"
	PincodeBLRClosed = "560002"
	PincodeMUM       = "400001"
	PincodeDEL       = "110001"
)

var (
	ProductPhone   = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	ProductCase    = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	ProductCharger = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	VariantPhone   = uuid.MustParse("44444444-4444-4444-4444-444444444444")
)

type Env struct {
	Store        *memory.Store
	Registry     *warehouse.Registry
	Directory    *pincode.Directory
	Engine       *allocation.Engine
	Reservations *reservation.Manager
}

func ReferenceData() models.ReferenceData {
	link := func(wh string, zones ...string) []models.WarehouseZone {
		out := make([]models.WarehouseZone, len(zones))
		for i, z := range zones {
			out[i] = models.WarehouseZone{WarehouseID: wh, ZoneID: z}
		}
		return out
	}
	variantPrice := decimal.RequireFromString("549.00")
	return models.ReferenceData{
		Zones: []models.Zone{
			{ID: "blr", Name: "Bengaluru", City: "Bengaluru", State: "Karnataka"},
			{ID: "mum", Name: "Mumbai", City: "Mumbai", State: "Maharashtra"},
			{ID: "del", Name: "Delhi", City: "New Delhi", State: "Delhi"},
		},
		Pincodes: []models.Pincode{
			{Code: PincodeBLR, ZoneID: "blr", Deliverable: true, DeliveryDays: 2, CODAvailable: true},
			{Code: PincodeBLRClosed, ZoneID: "blr", Deliverable: false, DeliveryDays: 0},
			{Code: PincodeMUM, ZoneID: "mum", Deliverable: true, DeliveryDays: 3},
			{Code: PincodeDEL, ZoneID: "del", Deliverable: true, DeliveryDays: 5},
		},
		Warehouses: []models.Warehouse{
			{ID: "local-1", Name: "Bengaluru Local", Type: models.WarehouseLocal, IsActive: true, Zones: link("local-1", "blr")},
			{ID: "zonal-1", Name: "South Zonal", Type: models.WarehouseZonal, IsActive: true, Zones: link("zonal-1", "blr", "mum")},
			{ID: "central-1", Name: "Central", Type: models.WarehouseCentral, IsActive: true, Zones: link("central-1", "blr", "mum")},
			{ID: "local-2", Name: "Mumbai Local", Type: models.WarehouseLocal, IsActive: false, Zones: link("local-2", "mum")},
		},
		Products: []models.Product{
			{
				ID: ProductPhone, Name: "Phone", IsActive: true,
				Price:           decimal.RequireFromString("499.00"),
				ShippingPerUnit: decimal.RequireFromString("10.00"),
				Variants:        []models.Variant{{ID: VariantPhone, Label: "256GB", Price: &variantPrice}},
			},
			{
				ID: ProductCase, Name: "Case", IsActive: true,
				Price:           decimal.RequireFromString("19.99"),
				ShippingPerUnit: decimal.RequireFromString("1.50"),
			},
			{
				ID: ProductCharger, Name: "Charger", IsActive: true,
				Price:           decimal.RequireFromString("25.00"),
				ShippingPerUnit: decimal.Zero,
			},
		},
	}
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()

	st := memory.New()
	if err := st.ImportReference(ctx, ReferenceData()); err != nil {
		t.Fatalf("import reference: %v", err)
	}
	reg := warehouse.NewRegistry(st, log)
	if err := reg.Refresh(ctx); err != nil {
		t.Fatalf("refresh registry: %v", err)
	}
	dir := pincode.NewDirectory(st, reg, log)
	if err := dir.Refresh(ctx); err != nil {
		t.Fatalf("refresh directory: %v", err)
	}
	return &Env{
		Store:        st,
		Registry:     reg,
		Directory:    dir,
		Engine:       allocation.NewEngine(dir, reg),
		Reservations: reservation.NewManager(st, log),
	}
}

func SKU(product uuid.UUID) models.SKU { return models.NewSKU(product, nil) }

// SetStock tops on_hand for sku at warehouse up by qty.
func (e *Env) SetStock(t *testing.T, sku models.SKU, warehouseID string, qty int64) {
	t.Helper()
	if _, err := e.Registry.AdjustStock(context.Background(), sku.ID(), warehouseID, qty, "seed"); err != nil {
		t.Fatalf("seed stock %s@%s: %v", sku, warehouseID, err)
	}
}

func (e *Env) Stock(t *testing.T, sku models.SKU, warehouseID string) models.StockRecord {
	t.Helper()
	rec, err := e.Registry.GetStock(context.Background(), sku.ID(), warehouseID)
	if err != nil {
		t.Fatalf("get stock %s@%s: %v", sku, warehouseID, err)
	}
	return rec
}
