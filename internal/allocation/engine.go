package allocation

import (
	"allocation-service/internal/apperr"
	"allocation-service/internal/models"
	"allocation-service/internal/pincode"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

type Reason string

const (
	ReasonZoneUnresolved    Reason = "zone_unresolved"
	ReasonInsufficientStock Reason = "insufficient_stock"
)

type ZoneResolver interface {
	ResolveZone(code string) (models.Zone, error)
}

type StockReader interface {
	WarehousesForZone(zoneID string) []models.Warehouse
	GetStock(ctx context.Context, skuID, warehouseID string) (models.StockRecord, error)
	ListStock(ctx context.Context, f models.StockFilter) ([]models.StockRecord, error)
}

type Line struct {
	SKU      models.SKU
	Quantity int64
}

type Result struct {
	SKU          models.SKU
	Quantity     int64
	Deliverable  bool
	Warehouse    *models.Warehouse
	FallbackUsed bool
	Reason       Reason
	Zone         *models.Zone
}

func (r Result) Message() string {
	switch {
	case r.Deliverable && !r.FallbackUsed:
		return "Available for delivery from local warehouse"
	case r.Deliverable:
		return fmt.Sprintf("Available for delivery from %s warehouse", r.Warehouse.Type)
	case r.Reason == ReasonZoneUnresolved:
		return "Delivery is not available to this pincode"
	default:
		return "Not enough stock to deliver this quantity to this pincode"
	}
}

type CartResult struct {
	Lines         []Result
	Deliverable   []Result
	Undeliverable []Result
}

func (c CartResult) AllDeliverable() bool {
	return len(c.Lines) > 0 && len(c.Undeliverable) == 0
}

// Engine picks a source warehouse per SKU. For a fixed stock snapshot the
// answer is always the same: the first warehouse in fallback order that can
// cover the whole quantity.
type Engine struct {
	zones ZoneResolver
	stock StockReader
}

func NewEngine(zones ZoneResolver, stock StockReader) *Engine {
	return &Engine{zones: zones, stock: stock}
}

func (e *Engine) CheckAvailability(ctx context.Context, sku models.SKU, code string, quantity int64) (Result, error) {
	if err := validateLine(sku, quantity); err != nil {
		return Result{}, err
	}
	zone, ok, err := e.resolve(code)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return unresolved(sku, quantity), nil
	}
	return e.allocate(ctx, sku, quantity, zone)
}

// CheckCartAvailability evaluates every line on its own, in cart order.
func (e *Engine) CheckCartAvailability(ctx context.Context, lines []Line, code string) (CartResult, error) {
	if len(lines) == 0 {
		return CartResult{}, apperr.Invalid("items", "cart is empty")
	}
	for _, l := range lines {
		if err := validateLine(l.SKU, l.Quantity); err != nil {
			return CartResult{}, err
		}
	}
	zone, ok, err := e.resolve(code)
	if err != nil {
		return CartResult{}, err
	}

	out := CartResult{Lines: make([]Result, 0, len(lines))}
	for _, l := range lines {
		var res Result
		if !ok {
			res = unresolved(l.SKU, l.Quantity)
		} else if res, err = e.allocate(ctx, l.SKU, l.Quantity, zone); err != nil {
			return CartResult{}, err
		}
		out.Lines = append(out.Lines, res)
		if res.Deliverable {
			out.Deliverable = append(out.Deliverable, res)
		} else {
			out.Undeliverable = append(out.Undeliverable, res)
		}
	}
	return out, nil
}

// Offer is a SKU a zone can receive at least one unit of, from the first
// warehouse in fallback order with free stock.
type Offer struct {
	SKU          models.SKU
	Warehouse    models.Warehouse
	FallbackUsed bool
	Available    int64
}

// DeliverableSKUs lists what can be shipped to code right now, sorted by SKU id.
// ok is false when the pincode does not resolve to a serviceable zone.
func (e *Engine) DeliverableSKUs(ctx context.Context, code string) (offers []Offer, ok bool, err error) {
	zone, ok, err := e.resolve(code)
	if err != nil || !ok {
		return nil, ok, err
	}
	seen := map[string]bool{}
	for _, w := range e.stock.WarehousesForZone(zone.ID) {
		recs, err := e.stock.ListStock(ctx, models.StockFilter{WarehouseID: w.ID, InStockOnly: true, Limit: models.MaxStockLimit})
		if err != nil {
			return nil, true, err
		}
		for _, rec := range recs {
			if seen[rec.SKUID] || rec.Available() <= 0 {
				continue
			}
			sku, err := models.ParseSKU(rec.SKUID)
			if err != nil {
				continue
			}
			seen[rec.SKUID] = true
			offers = append(offers, Offer{
				SKU:          sku,
				Warehouse:    w,
				FallbackUsed: w.Type != models.WarehouseLocal,
				Available:    rec.Available(),
			})
		}
	}
	sort.Slice(offers, func(i, j int) bool { return offers[i].SKU.ID() < offers[j].SKU.ID() })
	return offers, true, nil
}

func (e *Engine) resolve(code string) (models.Zone, bool, error) {
	if err := pincode.Validate(code); err != nil {
		return models.Zone{}, false, err
	}
	zone, err := e.zones.ResolveZone(code)
	if errors.Is(err, pincode.ErrZoneNotFound) {
		return models.Zone{}, false, nil
	}
	if err != nil {
		return models.Zone{}, false, err
	}
	return zone, true, nil
}

func (e *Engine) allocate(ctx context.Context, sku models.SKU, quantity int64, zone models.Zone) (Result, error) {
	res := Result{SKU: sku, Quantity: quantity, Zone: &zone}
	for _, w := range e.stock.WarehousesForZone(zone.ID) {
		rec, err := e.stock.GetStock(ctx, sku.ID(), w.ID)
		if err != nil {
			return Result{}, err
		}
		if rec.Available() >= quantity {
			w := w
			res.Deliverable = true
			res.Warehouse = &w
			res.FallbackUsed = w.Type != models.WarehouseLocal
			return res, nil
		}
	}
	res.Reason = ReasonInsufficientStock
	return res, nil
}

func unresolved(sku models.SKU, quantity int64) Result {
	return Result{SKU: sku, Quantity: quantity, Reason: ReasonZoneUnresolved}
}

func validateLine(sku models.SKU, quantity int64) error {
	if sku.ProductID == uuid.Nil {
		return apperr.Invalid("sku_id", "required")
	}
	if quantity <= 0 {
		return apperr.Invalid("quantity", "must be greater than zero")
	}
	return nil
}
