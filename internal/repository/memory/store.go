// Package memory is an in-process Store with the same method set as the
// Postgres-backed repository.Store. One mutex serializes every mutation, which
// covers the per-(sku, warehouse) ordering the reservation path needs.
package memory

import (
	"allocation-service/internal/models"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type stockKey struct {
	sku string
	wh  string
}

type Store struct {
	mu sync.RWMutex

	zones      map[string]models.Zone
	pincodes   map[string]models.Pincode
	warehouses map[string]models.Warehouse
	products   map[uuid.UUID]models.Product
	variants   map[uuid.UUID]models.Variant

	stock        map[stockKey]*models.StockRecord
	reservations map[uuid.UUID]*models.Reservation
	movements    []models.StockMovement

	seq int64
	now func() time.Time
}

func New() *Store {
	return &Store{
		zones:        map[string]models.Zone{},
		pincodes:     map[string]models.Pincode{},
		warehouses:   map[string]models.Warehouse{},
		products:     map[uuid.UUID]models.Product{},
		variants:     map[uuid.UUID]models.Variant{},
		stock:        map[stockKey]*models.StockRecord{},
		reservations: map[uuid.UUID]*models.Reservation{},
		now:          time.Now,
	}
}

// SetClock replaces the time source; tests use it to age reservations.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// tick keeps created_at strictly increasing so listing order is stable.
func (s *Store) tick() time.Time {
	s.seq++
	return s.now().Add(time.Duration(s.seq))
}

func (s *Store) ListZones(ctx context.Context) ([]models.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Zone, 0, len(s.zones))
	for _, z := range s.zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListPincodes(ctx context.Context) ([]models.Pincode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Pincode, 0, len(s.pincodes))
	for _, p := range s.pincodes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Warehouse, 0, len(s.warehouses))
	for _, w := range s.warehouses {
		w.Zones = append([]models.WarehouseZone(nil), w.Zones...)
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ImportReference(ctx context.Context, data models.ReferenceData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, z := range data.Zones {
		s.zones[z.ID] = z
	}
	for _, p := range data.Pincodes {
		s.pincodes[p.Code] = p
	}
	for _, w := range data.Warehouses {
		links := make([]models.WarehouseZone, 0, len(w.Zones))
		for _, z := range w.Zones {
			links = append(links, models.WarehouseZone{WarehouseID: w.ID, ZoneID: z.ZoneID})
		}
		sort.Slice(links, func(i, j int) bool { return links[i].ZoneID < links[j].ZoneID })
		w.Zones = links
		s.warehouses[w.ID] = w
	}
	for _, p := range data.Products {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		for _, v := range p.Variants {
			if v.ID == uuid.Nil {
				v.ID = uuid.New()
			}
			v.ProductID = p.ID
			s.variants[v.ID] = v
		}
		p.Variants = nil
		s.products[p.ID] = p
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	for _, v := range s.variants {
		if v.ProductID == id {
			p.Variants = append(p.Variants, v)
		}
	}
	return &p, nil
}

func (s *Store) GetVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.variants[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *Store) GetStock(ctx context.Context, skuID, warehouseID string) (*models.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.stock[stockKey{skuID, warehouseID}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) AdjustOnHand(ctx context.Context, skuID, warehouseID string, delta int64, note string) (*models.StockRecord, bool, error) {
	k := stockKey{skuID, warehouseID}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, exists := s.stock[k]
	if !exists {
		if delta < 0 {
			return nil, false, nil
		}
		rec = &models.StockRecord{SKUID: skuID, WarehouseID: warehouseID}
		s.stock[k] = rec
	}
	if rec.OnHand+delta < rec.Reserved {
		cp := *rec
		return &cp, false, nil
	}
	now := s.tick()
	rec.OnHand += delta
	rec.UpdatedAt = now
	s.movements = append(s.movements, models.StockMovement{
		ID:          uuid.New(),
		SKUID:       skuID,
		WarehouseID: warehouseID,
		Kind:        models.MovementAdjust,
		Quantity:    delta,
		Note:        note,
		CreatedAt:   now,
	})
	cp := *rec
	return &cp, true, nil
}

func (s *Store) ListStock(ctx context.Context, f models.StockFilter) ([]models.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StockRecord
	for k, rec := range s.stock {
		if f.WarehouseID != "" && k.wh != f.WarehouseID {
			continue
		}
		if f.ProductID != "" && k.sku != f.ProductID && !strings.HasPrefix(k.sku, f.ProductID+":") {
			continue
		}
		if f.InStockOnly && rec.Available() <= 0 {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SKUID != out[j].SKUID {
			return out[i].SKUID < out[j].SKUID
		}
		return out[i].WarehouseID < out[j].WarehouseID
	})
	if limit := f.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) WarehouseSummaries(ctx context.Context, warehouseID string) ([]models.WarehouseSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.WarehouseSummary
	for _, w := range s.warehouses {
		if warehouseID != "" && w.ID != warehouseID {
			continue
		}
		sum := models.WarehouseSummary{WarehouseID: w.ID, Name: w.Name, Type: w.Type}
		for k, rec := range s.stock {
			if k.wh != w.ID {
				continue
			}
			sum.SKUCount++
			sum.OnHand += rec.OnHand
			sum.Reserved += rec.Reserved
		}
		for _, r := range s.reservations {
			if r.WarehouseID == w.ID && r.State == models.ReservationHeld {
				sum.HeldReservations++
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WarehouseID < out[j].WarehouseID })
	return out, nil
}

func (s *Store) ListMovements(ctx context.Context, f models.MovementFilter) ([]models.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var out []models.StockMovement
	for i := len(s.movements) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.movements[i]
		if f.WarehouseID != "" && m.WarehouseID != f.WarehouseID {
			continue
		}
		if f.SKUID != "" && m.SKUID != f.SKUID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) CreateHold(ctx context.Context, r *models.Reservation) (bool, error) {
	k := stockKey{r.SKUID, r.WarehouseID}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.stock[k]
	if !ok || rec.OnHand-rec.Reserved < r.Quantity {
		return false, nil
	}
	now := s.tick()
	rec.Reserved += r.Quantity
	rec.UpdatedAt = now

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.State = models.ReservationHeld
	r.CreatedAt = now
	r.UpdatedAt = now
	cp := *r
	s.reservations[r.ID] = &cp
	s.movements = append(s.movements, movementFor(&cp, models.MovementReserve, now))
	return true, nil
}

func (s *Store) ReleaseHold(ctx context.Context, id uuid.UUID) (*models.Reservation, bool, error) {
	return s.finishHold(id, models.ReservationReleased)
}

func (s *Store) ConfirmHold(ctx context.Context, id uuid.UUID) (*models.Reservation, bool, error) {
	return s.finishHold(id, models.ReservationConfirmed)
}

func (s *Store) finishHold(id uuid.UUID, to models.ReservationState) (*models.Reservation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, false, nil
	}
	if r.State != models.ReservationHeld {
		cp := *r
		return &cp, false, nil
	}
	rec := s.stock[stockKey{r.SKUID, r.WarehouseID}]
	now := s.tick()
	kind := models.MovementRelease
	if to == models.ReservationConfirmed {
		kind = models.MovementConfirm
		rec.OnHand -= r.Quantity
	}
	rec.Reserved -= r.Quantity
	rec.UpdatedAt = now
	r.State = to
	r.UpdatedAt = now
	s.movements = append(s.movements, movementFor(r, kind, now))
	cp := *r
	return &cp, true, nil
}

func (s *Store) GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListReservationsByOrder(ctx context.Context, orderToken string) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Reservation
	for _, r := range s.reservations {
		if r.OrderToken == orderToken {
			out = append(out, *r)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *Store) ListHeldBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Reservation
	for _, r := range s.reservations {
		if r.State == models.ReservationHeld && r.CreatedAt.Before(cutoff) {
			out = append(out, *r)
		}
	}
	sortByCreated(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortByCreated(list []models.Reservation) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID.String() < list[j].ID.String()
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

func movementFor(r *models.Reservation, kind models.MovementKind, at time.Time) models.StockMovement {
	id := r.ID
	return models.StockMovement{
		ID:            uuid.New(),
		SKUID:         r.SKUID,
		WarehouseID:   r.WarehouseID,
		Kind:          kind,
		Quantity:      r.Quantity,
		ReservationID: &id,
		CreatedAt:     at,
	}
}
