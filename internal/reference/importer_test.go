package reference_test

import (
	"allocation-service/internal/apperr"
	"allocation-service/internal/models"
	"allocation-service/internal/reference"
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type MockStore struct {
	ImportReferenceFunc func(ctx context.Context, data models.ReferenceData) error
}

func (m *MockStore) ImportReference(ctx context.Context, data models.ReferenceData) error {
	return m.ImportReferenceFunc(ctx, data)
}

type recorder struct {
	name  string
	calls *[]string
	err   error
}

func (r recorder) Refresh(ctx context.Context) error {
	*r.calls = append(*r.calls, r.name)
	return r.err
}

type staticCoverage struct{ missing []string }

func (s staticCoverage) MissingCentral([]string) []string { return s.missing }

type staticZones []string

func (s staticZones) ZoneIDs() []string { return s }

type countingCache struct{ calls int }

func (c *countingCache) InvalidateZones(ctx context.Context) int {
	c.calls++
	return 7
}

func validData() models.ReferenceData {
	return models.ReferenceData{
		Zones:    []models.Zone{{ID: "z", Name: "Z"}},
		Pincodes: []models.Pincode{{Code: "400001", ZoneID: "z", Deliverable: true, DeliveryDays: 2}},
		Warehouses: []models.Warehouse{{
			ID: "w1", Name: "W1", Type: models.WarehouseCentral, IsActive: true,
			Zones: []models.WarehouseZone{{ZoneID: "z"}},
		}},
		Products: []models.Product{{Name: "Lamp", Price: decimal.RequireFromString("12.50")}},
	}
}

func TestImport(t *testing.T) {
	var calls []string
	var stored models.ReferenceData
	store := &MockStore{ImportReferenceFunc: func(ctx context.Context, data models.ReferenceData) error {
		calls = append(calls, "store")
		stored = data
		return nil
	}}
	cache := &countingCache{}
	im := reference.NewImporter(store,
		recorder{"registry", &calls, nil},
		recorder{"directory", &calls, nil},
		staticCoverage{missing: []string{"x"}}, staticZones{"z", "x"}, cache, zap.NewNop())

	sum, err := im.Import(context.Background(), validData())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	want := []string{"store", "registry", "directory"}
	if len(calls) != len(want) {
		t.Fatalf("calls: %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("order: %v", calls)
		}
	}
	if stored.Warehouses[0].Zones[0].WarehouseID != "w1" {
		t.Fatalf("warehouse links not normalised: %+v", stored.Warehouses[0].Zones)
	}
	if sum.Zones != 1 || sum.Pincodes != 1 || sum.Warehouses != 1 || sum.Products != 1 {
		t.Fatalf("counts: %+v", sum)
	}
	if cache.calls != 1 || sum.Invalidated != 7 {
		t.Fatalf("cache not invalidated: %+v", sum)
	}
	if len(sum.MissingCentral) != 1 || sum.MissingCentral[0] != "x" {
		t.Fatalf("missing central: %v", sum.MissingCentral)
	}
}

func TestImport_StorageError(t *testing.T) {
	var calls []string
	store := &MockStore{ImportReferenceFunc: func(ctx context.Context, data models.ReferenceData) error {
		return errors.New("deadlock detected")
	}}
	im := reference.NewImporter(store,
		recorder{"registry", &calls, nil},
		recorder{"directory", &calls, nil},
		staticCoverage{}, staticZones{}, nil, zap.NewNop())

	_, err := im.Import(context.Background(), validData())
	if !apperr.IsStorage(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("snapshots refreshed after failed import: %v", calls)
	}
}

func TestValidate(t *testing.T) {
	mutate := []func(d *models.ReferenceData){
		func(d *models.ReferenceData) { d.Zones[0].Name = "" },
		func(d *models.ReferenceData) { d.Pincodes[0].Code = "012345" },
		func(d *models.ReferenceData) { d.Pincodes[0].ZoneID = "" },
		func(d *models.ReferenceData) { d.Pincodes[0].DeliveryDays = -1 },
		func(d *models.ReferenceData) { d.Warehouses[0].ID = "" },
		func(d *models.ReferenceData) { d.Warehouses[0].Type = "hub" },
		func(d *models.ReferenceData) { d.Products[0].Name = "" },
		func(d *models.ReferenceData) { d.Products[0].Price = decimal.NewFromInt(-1) },
	}
	if err := reference.Validate(validData()); err != nil {
		t.Fatalf("valid data rejected: %v", err)
	}
	for i, m := range mutate {
		d := validData()
		m(&d)
		if err := reference.Validate(d); !apperr.IsValidation(err) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}
