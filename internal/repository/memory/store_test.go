package memory_test

import (
	"allocation-service/internal/models"
	"allocation-service/internal/repository/memory"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestImportReference_Upserts(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	pid := uuid.New()
	vid := uuid.New()
	err := st.ImportReference(ctx, models.ReferenceData{
		Zones:    []models.Zone{{ID: "b", Name: "B"}, {ID: "a", Name: "A"}},
		Pincodes: []models.Pincode{{Code: "300001", ZoneID: "a", Deliverable: true}},
		Warehouses: []models.Warehouse{{
			ID: "w1", Name: "W1", Type: models.WarehouseLocal, IsActive: true,
			Zones: []models.WarehouseZone{{ZoneID: "b"}, {ZoneID: "a"}},
		}},
		Products: []models.Product{{
			ID: pid, Name: "Kettle", Price: decimal.RequireFromString("30.00"),
			Variants: []models.Variant{{ID: vid, Label: "red"}},
		}},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	err = st.ImportReference(ctx, models.ReferenceData{
		Zones: []models.Zone{{ID: "a", Name: "A renamed"}},
	})
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	zones, _ := st.ListZones(ctx)
	if len(zones) != 2 || zones[0].ID != "a" || zones[0].Name != "A renamed" {
		t.Fatalf("zones not upserted: %+v", zones)
	}

	whs, _ := st.ListWarehouses(ctx)
	if len(whs) != 1 || len(whs[0].Zones) != 2 || whs[0].Zones[0].ZoneID != "a" || whs[0].Zones[0].WarehouseID != "w1" {
		t.Fatalf("warehouse links: %+v", whs)
	}

	p, err := st.GetProduct(ctx, pid)
	if err != nil || p == nil || len(p.Variants) != 1 {
		t.Fatalf("product: %+v %v", p, err)
	}
	v, _ := st.GetVariant(ctx, vid)
	if v == nil || v.ProductID != pid {
		t.Fatalf("variant not linked: %+v", v)
	}
	if missing, _ := st.GetProduct(ctx, uuid.New()); missing != nil {
		t.Fatalf("unknown product returned %+v", missing)
	}
}

func TestAdjustOnHand(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	if rec, ok, _ := st.AdjustOnHand(ctx, "sku", "w1", -1, ""); ok || rec != nil {
		t.Fatalf("negative adjust on missing record: %+v %v", rec, ok)
	}
	if rec, ok, _ := st.AdjustOnHand(ctx, "sku", "w1", 4, "inbound"); !ok || rec.OnHand != 4 {
		t.Fatalf("inbound: %+v %v", rec, ok)
	}
	ok, _ := st.CreateHold(ctx, &models.Reservation{OrderToken: "o", SKUID: "sku", WarehouseID: "w1", Quantity: 3})
	if !ok {
		t.Fatalf("hold should fit")
	}
	if rec, ok, _ := st.AdjustOnHand(ctx, "sku", "w1", -2, ""); ok || rec.OnHand != 4 || rec.Reserved != 3 {
		t.Fatalf("adjust below reserved: %+v %v", rec, ok)
	}
	if rec, ok, _ := st.AdjustOnHand(ctx, "sku", "w1", -1, ""); !ok || rec.OnHand != 3 {
		t.Fatalf("adjust down to reserved: %+v %v", rec, ok)
	}
}

func TestCreateHold(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	if ok, _ := st.CreateHold(ctx, &models.Reservation{OrderToken: "o", SKUID: "sku", WarehouseID: "w1", Quantity: 1}); ok {
		t.Fatalf("hold without stock record")
	}
	st.AdjustOnHand(ctx, "sku", "w1", 2, "")
	r := &models.Reservation{OrderToken: "o", SKUID: "sku", WarehouseID: "w1", Quantity: 2}
	if ok, _ := st.CreateHold(ctx, r); !ok {
		t.Fatalf("hold should fit")
	}
	if r.ID == uuid.Nil || r.State != models.ReservationHeld || r.CreatedAt.IsZero() {
		t.Fatalf("hold not populated: %+v", r)
	}
	if ok, _ := st.CreateHold(ctx, &models.Reservation{OrderToken: "o2", SKUID: "sku", WarehouseID: "w1", Quantity: 1}); ok {
		t.Fatalf("hold beyond available")
	}
}

func TestListMovements(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	for i := 0; i < 5; i++ {
		st.AdjustOnHand(ctx, "a", "w1", 1, "")
	}
	st.AdjustOnHand(ctx, "b", "w2", 7, "last")

	all, _ := st.ListMovements(ctx, models.MovementFilter{})
	if len(all) != 6 || all[0].Note != "last" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	limited, _ := st.ListMovements(ctx, models.MovementFilter{WarehouseID: "w1", Limit: 2})
	if len(limited) != 2 || limited[0].WarehouseID != "w1" {
		t.Fatalf("filter and limit: %+v", limited)
	}
	bySKU, _ := st.ListMovements(ctx, models.MovementFilter{SKUID: "b"})
	if len(bySKU) != 1 || bySKU[0].Quantity != 7 {
		t.Fatalf("sku filter: %+v", bySKU)
	}
}
