// Package reference loads zones, pincodes, warehouses and the catalogue in
// bulk and swaps the in-memory snapshots afterwards.
package reference

import (
	"allocation-service/internal/apperr"
	"allocation-service/internal/models"
	"allocation-service/internal/pincode"
	"context"
	"fmt"

	"go.uber.org/zap"
)

type Store interface {
	ImportReference(ctx context.Context, data models.ReferenceData) error
}

type Refresher interface {
	Refresh(ctx context.Context) error
}

type Coverage interface {
	MissingCentral(zoneIDs []string) []string
}

type Zones interface {
	ZoneIDs() []string
}

// ZoneInvalidator drops cached pincode and availability answers.
type ZoneInvalidator interface {
	InvalidateZones(ctx context.Context) int
}

type Summary struct {
	Zones          int
	Pincodes       int
	Warehouses     int
	Products       int
	Invalidated    int
	MissingCentral []string
}

type Importer struct {
	store     Store
	registry  Refresher
	directory Refresher
	coverage  Coverage
	zones     Zones
	cache     ZoneInvalidator
	log       *zap.Logger
}

// NewImporter refreshes registry before directory: serviceability in the
// directory is derived from registry coverage.
func NewImporter(store Store, registry Refresher, directory Refresher, coverage Coverage, zones Zones, cache ZoneInvalidator, log *zap.Logger) *Importer {
	return &Importer{
		store:     store,
		registry:  registry,
		directory: directory,
		coverage:  coverage,
		zones:     zones,
		cache:     cache,
		log:       log,
	}
}

func (im *Importer) Import(ctx context.Context, data models.ReferenceData) (Summary, error) {
	if err := Validate(data); err != nil {
		return Summary{}, err
	}
	for i := range data.Warehouses {
		for j := range data.Warehouses[i].Zones {
			data.Warehouses[i].Zones[j].WarehouseID = data.Warehouses[i].ID
		}
	}
	if err := im.store.ImportReference(ctx, data); err != nil {
		return Summary{}, apperr.Storage("import reference", err)
	}
	if err := im.registry.Refresh(ctx); err != nil {
		return Summary{}, err
	}
	if err := im.directory.Refresh(ctx); err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Zones:      len(data.Zones),
		Pincodes:   len(data.Pincodes),
		Warehouses: len(data.Warehouses),
		Products:   len(data.Products),
	}
	if im.cache != nil {
		sum.Invalidated = im.cache.InvalidateZones(ctx)
	}
	sum.MissingCentral = im.coverage.MissingCentral(im.zones.ZoneIDs())
	if len(sum.MissingCentral) > 0 {
		im.log.Warn("zones without central warehouse after import", zap.Strings("zones", sum.MissingCentral))
	}
	im.log.Info("reference data imported",
		zap.Int("zones", sum.Zones),
		zap.Int("pincodes", sum.Pincodes),
		zap.Int("warehouses", sum.Warehouses),
		zap.Int("products", sum.Products),
	)
	return sum, nil
}

// Validate rejects the whole payload on the first malformed record.
func Validate(data models.ReferenceData) error {
	for _, z := range data.Zones {
		if z.ID == "" || z.Name == "" {
			return apperr.Invalid("zones", "zone_id and zone_name are required")
		}
	}
	for _, p := range data.Pincodes {
		if err := pincode.Validate(p.Code); err != nil {
			return apperr.Invalid("pincodes", fmt.Sprintf("%q: must be 6 digits and must not start with 0", p.Code))
		}
		if p.ZoneID == "" {
			return apperr.Invalid("pincodes", fmt.Sprintf("%q: zone_id is required", p.Code))
		}
		if p.DeliveryDays < 0 {
			return apperr.Invalid("pincodes", fmt.Sprintf("%q: delivery_days must not be negative", p.Code))
		}
	}
	for _, w := range data.Warehouses {
		if w.ID == "" {
			return apperr.Invalid("warehouses", "id is required")
		}
		if !w.Type.Valid() {
			return apperr.Invalid("warehouses", fmt.Sprintf("%s: type must be local, zonal or central", w.ID))
		}
	}
	for _, p := range data.Products {
		if p.Name == "" {
			return apperr.Invalid("products", "name is required")
		}
		if p.Price.IsNegative() || p.ShippingPerUnit.IsNegative() {
			return apperr.Invalid("products", fmt.Sprintf("%s: prices must not be negative", p.Name))
		}
	}
	return nil
}
