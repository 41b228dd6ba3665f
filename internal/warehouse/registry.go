package warehouse

import (
	"allocation-service/internal/apperr"
	"allocation-service/internal/models"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrWarehouseNotFound  = fmt.Errorf("warehouse %w", apperr.ErrNotFound)
	ErrStockBelowReserved = fmt.Errorf("adjustment would drop on_hand below reserved: %w", apperr.ErrConflict)
)

type Store interface {
	ListWarehouses(ctx context.Context) ([]models.Warehouse, error)
	GetStock(ctx context.Context, skuID, warehouseID string) (*models.StockRecord, error)
	AdjustOnHand(ctx context.Context, skuID, warehouseID string, delta int64, note string) (*models.StockRecord, bool, error)
	ListStock(ctx context.Context, f models.StockFilter) ([]models.StockRecord, error)
	WarehouseSummaries(ctx context.Context, warehouseID string) ([]models.WarehouseSummary, error)
	ListMovements(ctx context.Context, f models.MovementFilter) ([]models.StockMovement, error)
}

// Registry keeps an ordered in-memory view of warehouses per zone and reads
// stock straight from the store.
type Registry struct {
	store Store
	log   *zap.Logger

	mu     sync.RWMutex
	byID   map[string]models.Warehouse
	byZone map[string][]models.Warehouse
}

func NewRegistry(store Store, log *zap.Logger) *Registry {
	return &Registry{
		store:  store,
		log:    log,
		byID:   map[string]models.Warehouse{},
		byZone: map[string][]models.Warehouse{},
	}
}

func (r *Registry) Refresh(ctx context.Context) error {
	list, err := r.store.ListWarehouses(ctx)
	if err != nil {
		return apperr.Storage("list warehouses", err)
	}

	byID := make(map[string]models.Warehouse, len(list))
	byZone := map[string][]models.Warehouse{}
	for _, w := range list {
		if !w.Type.Valid() {
			r.log.Warn("skipping warehouse with unknown type", zap.String("warehouse_id", w.ID), zap.String("type", string(w.Type)))
			continue
		}
		byID[w.ID] = w
		if !w.IsActive {
			continue
		}
		for _, z := range w.Zones {
			byZone[z.ZoneID] = append(byZone[z.ZoneID], w)
		}
	}
	for zone := range byZone {
		sortFallback(byZone[zone])
	}

	r.mu.Lock()
	r.byID, r.byZone = byID, byZone
	r.mu.Unlock()

	r.log.Info("warehouse registry refreshed", zap.Int("warehouses", len(byID)), zap.Int("zones", len(byZone)))
	return nil
}

// sortFallback orders local → zonal → central, lowest id first within a type.
func sortFallback(list []models.Warehouse) {
	sort.SliceStable(list, func(i, j int) bool {
		ri, rj := list[i].Type.Rank(), list[j].Type.Rank()
		if ri != rj {
			return ri < rj
		}
		return list[i].ID < list[j].ID
	})
}

// WarehousesForZone returns a copy; callers may keep it.
func (r *Registry) WarehousesForZone(zoneID string) []models.Warehouse {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src := r.byZone[zoneID]
	out := make([]models.Warehouse, len(src))
	copy(out, src)
	return out
}

func (r *Registry) ServesZone(zoneID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byZone[zoneID]) > 0
}

func (r *Registry) Warehouse(id string) (models.Warehouse, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byID[id]
	return w, ok
}

// MissingCentral lists the zones in zoneIDs that no active central warehouse covers.
func (r *Registry) MissingCentral(zoneIDs []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	for _, id := range zoneIDs {
		covered := false
		for _, w := range r.byZone[id] {
			if w.Type == models.WarehouseCentral {
				covered = true
				break
			}
		}
		if !covered {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}

// CheckCoverage logs zones without a central fallback.
func (r *Registry) CheckCoverage(zoneIDs []string) {
	if missing := r.MissingCentral(zoneIDs); len(missing) > 0 {
		r.log.Warn("zones without central warehouse", zap.String("zones", strings.Join(missing, ",")))
	}
}

// GetStock returns a zero record when none exists.
func (r *Registry) GetStock(ctx context.Context, skuID, warehouseID string) (models.StockRecord, error) {
	rec, err := r.store.GetStock(ctx, skuID, warehouseID)
	if err != nil {
		return models.StockRecord{}, apperr.Storage("get stock", err)
	}
	if rec == nil {
		return models.StockRecord{SKUID: skuID, WarehouseID: warehouseID}, nil
	}
	return *rec, nil
}

func (r *Registry) AdjustStock(ctx context.Context, skuID, warehouseID string, delta int64, note string) (models.StockRecord, error) {
	if skuID == "" {
		return models.StockRecord{}, apperr.Invalid("sku_id", "required")
	}
	if delta == 0 {
		return models.StockRecord{}, apperr.Invalid("delta", "must not be zero")
	}
	if _, ok := r.Warehouse(warehouseID); !ok {
		return models.StockRecord{}, ErrWarehouseNotFound
	}

	rec, ok, err := r.store.AdjustOnHand(ctx, skuID, warehouseID, delta, note)
	if err != nil {
		return models.StockRecord{}, apperr.Storage("adjust stock", err)
	}
	if !ok {
		return models.StockRecord{}, ErrStockBelowReserved
	}
	r.log.Info("stock adjusted",
		zap.String("sku_id", skuID),
		zap.String("warehouse_id", warehouseID),
		zap.Int64("delta", delta),
		zap.Int64("on_hand", rec.OnHand),
		zap.Int64("reserved", rec.Reserved),
	)
	return *rec, nil
}

func (r *Registry) ListStock(ctx context.Context, f models.StockFilter) ([]models.StockRecord, error) {
	if f.WarehouseID != "" {
		if _, ok := r.Warehouse(f.WarehouseID); !ok {
			return nil, ErrWarehouseNotFound
		}
	}
	if f.ProductID != "" {
		if _, err := uuid.Parse(f.ProductID); err != nil {
			return nil, apperr.Invalid("product_id", "must be a UUID")
		}
	}
	list, err := r.store.ListStock(ctx, f)
	if err != nil {
		return nil, apperr.Storage("list stock", err)
	}
	return list, nil
}

func (r *Registry) Dashboard(ctx context.Context, warehouseID string) ([]models.WarehouseSummary, error) {
	if warehouseID != "" {
		if _, ok := r.Warehouse(warehouseID); !ok {
			return nil, ErrWarehouseNotFound
		}
	}
	list, err := r.store.WarehouseSummaries(ctx, warehouseID)
	if err != nil {
		return nil, apperr.Storage("warehouse summaries", err)
	}
	return list, nil
}

func (r *Registry) Movements(ctx context.Context, f models.MovementFilter) ([]models.StockMovement, error) {
	list, err := r.store.ListMovements(ctx, f)
	if err != nil {
		return nil, apperr.Storage("list movements", err)
	}
	return list, nil
}
