package warehouse_test

import (
	"allocation-service/internal/apperr"
	"allocation-service/internal/models"
	"allocation-service/internal/repository/memory"
	"allocation-service/internal/testutil"
	"allocation-service/internal/warehouse"
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

var _ warehouse.Store = (*memory.Store)(nil)

func TestRefresh_FallbackOrder(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	wh := func(id string, typ models.WarehouseType, active bool) models.Warehouse {
		return models.Warehouse{ID: id, Name: id, Type: typ, IsActive: active, Zones: []models.WarehouseZone{{ZoneID: "z"}}}
	}
	err := st.ImportReference(ctx, models.ReferenceData{
		Zones: []models.Zone{{ID: "z", Name: "Z"}},
		Warehouses: []models.Warehouse{
			wh("central-b", models.WarehouseCentral, true),
			wh("zonal-b", models.WarehouseZonal, true),
			wh("local-b", models.WarehouseLocal, true),
			wh("zonal-a", models.WarehouseZonal, true),
			wh("local-a", models.WarehouseLocal, true),
			wh("local-0", models.WarehouseLocal, false),
			wh("odd", models.WarehouseType("regional"), true),
		},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	reg := warehouse.NewRegistry(st, zap.NewNop())
	if err := reg.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got := reg.WarehousesForZone("z")
	want := []string{"local-a", "local-b", "zonal-a", "zonal-b", "central-b"}
	if len(got) != len(want) {
		t.Fatalf("expected %d warehouses, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: want %s, got %s", i, id, got[i].ID)
		}
	}
	if _, ok := reg.Warehouse("local-0"); !ok {
		t.Fatalf("inactive warehouse should still be addressable")
	}
	if _, ok := reg.Warehouse("odd"); ok {
		t.Fatalf("warehouse with unknown type should be skipped")
	}
	if reg.ServesZone("nowhere") {
		t.Fatalf("unknown zone reported as served")
	}
}

func TestMissingCentral(t *testing.T) {
	env := testutil.NewEnv(t)
	missing := env.Registry.MissingCentral([]string{"blr", "mum", "del"})
	if len(missing) != 1 || missing[0] != "del" {
		t.Fatalf("missing central: %v", missing)
	}
}

func TestAdjustStock(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	sku := testutil.SKU(testutil.ProductCase)

	if _, err := env.Registry.AdjustStock(ctx, sku.ID(), "local-1", 5, "inbound"); err != nil {
		t.Fatalf("inbound: %v", err)
	}
	rec, err := env.Registry.AdjustStock(ctx, sku.ID(), "local-1", -2, "damaged")
	if err != nil || rec.OnHand != 3 {
		t.Fatalf("outbound: %+v %v", rec, err)
	}

	if _, err := env.Reservations.Reserve(ctx, "ord", sku, "local-1", 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	_, err = env.Registry.AdjustStock(ctx, sku.ID(), "local-1", -1, "shrinkage")
	if !errors.Is(err, warehouse.ErrStockBelowReserved) || !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected below-reserved conflict, got %v", err)
	}
	if got := env.Stock(t, sku, "local-1"); got.OnHand != 3 || got.Reserved != 3 {
		t.Fatalf("rejected adjustment changed stock: %+v", got)
	}

	if _, err := env.Registry.AdjustStock(ctx, sku.ID(), "local-1", 0, ""); !apperr.IsValidation(err) {
		t.Fatalf("zero delta: %v", err)
	}
	if _, err := env.Registry.AdjustStock(ctx, sku.ID(), "nowhere", 1, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown warehouse: %v", err)
	}
	if _, err := env.Registry.AdjustStock(ctx, sku.ID(), "zonal-1", -1, ""); !errors.Is(err, warehouse.ErrStockBelowReserved) {
		t.Fatalf("negative adjustment without stock: %v", err)
	}
}

func TestGetStock_ZeroRecord(t *testing.T) {
	env := testutil.NewEnv(t)
	rec := env.Stock(t, testutil.SKU(testutil.ProductCharger), "central-1")
	if rec.OnHand != 0 || rec.Reserved != 0 || rec.Available() != 0 {
		t.Fatalf("expected zero record, got %+v", rec)
	}
}

func TestDashboardAndMovements(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	phone := testutil.SKU(testutil.ProductPhone)
	env.SetStock(t, phone, "central-1", 10)
	env.SetStock(t, testutil.SKU(testutil.ProductCase), "central-1", 4)
	if _, err := env.Reservations.Reserve(ctx, "ord", phone, "central-1", 6); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	rows, err := env.Registry.Dashboard(ctx, "central-1")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	r := rows[0]
	if r.SKUCount != 2 || r.OnHand != 14 || r.Reserved != 6 || r.Available() != 8 || r.HeldReservations != 1 {
		t.Fatalf("unexpected summary: %+v", r)
	}
	if _, err := env.Registry.Dashboard(ctx, "nowhere"); !errors.Is(err, warehouse.ErrWarehouseNotFound) {
		t.Fatalf("unknown warehouse: %v", err)
	}

	moves, err := env.Registry.Movements(ctx, models.MovementFilter{SKUID: phone.ID()})
	if err != nil {
		t.Fatalf("movements: %v", err)
	}
	if len(moves) != 2 || moves[0].Kind != models.MovementReserve || moves[1].Kind != models.MovementAdjust {
		t.Fatalf("expected reserve then adjust (newest first), got %+v", moves)
	}
}
