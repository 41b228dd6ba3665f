package repository

import (
	"allocation-service/internal/models"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrStockOutOfSync means a held reservation had no matching reserved stock.
// The surrounding transaction is rolled back.
var ErrStockOutOfSync = errors.New("stock record out of sync with reservation")

// Store exposes the atomic units the domain packages rely on. Each multi-row
// mutation runs in one transaction; the stock row itself is guarded by a
// conditional UPDATE, so concurrent holds cannot push reserved past on_hand.
type Store struct {
	repo *Repository
	now  func() time.Time
}

func NewStore(repo *Repository) *Store {
	return &Store{repo: repo, now: time.Now}
}

func (s *Store) ListZones(ctx context.Context) ([]models.Zone, error) {
	return s.repo.Reference.ListZones(ctx)
}

func (s *Store) ListPincodes(ctx context.Context) ([]models.Pincode, error) {
	return s.repo.Reference.ListPincodes(ctx)
}

func (s *Store) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	return s.repo.Reference.ListWarehouses(ctx)
}

func (s *Store) ImportReference(ctx context.Context, data models.ReferenceData) error {
	return s.repo.WithTx(func(tx *Repository) error {
		if err := tx.Reference.UpsertZones(ctx, data.Zones); err != nil {
			return err
		}
		if err := tx.Reference.UpsertPincodes(ctx, data.Pincodes); err != nil {
			return err
		}
		for i := range data.Warehouses {
			if err := tx.Reference.UpsertWarehouse(ctx, &data.Warehouses[i]); err != nil {
				return err
			}
		}
		for i := range data.Products {
			if err := tx.Products.Upsert(ctx, &data.Products[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.repo.Products.GetByID(ctx, id)
}

func (s *Store) GetVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	return s.repo.Products.GetVariant(ctx, id)
}

func (s *Store) GetStock(ctx context.Context, skuID, warehouseID string) (*models.StockRecord, error) {
	return s.repo.Stock.Get(ctx, skuID, warehouseID)
}

// AdjustOnHand returns ok=false when the delta would drop on_hand below reserved.
func (s *Store) AdjustOnHand(ctx context.Context, skuID, warehouseID string, delta int64, note string) (*models.StockRecord, bool, error) {
	var (
		out *models.StockRecord
		ok  bool
	)
	err := s.repo.WithTx(func(tx *Repository) error {
		applied, err := tx.Stock.AdjustOnHand(ctx, skuID, warehouseID, delta)
		if err != nil {
			return err
		}
		if !applied {
			out, err = tx.Stock.Get(ctx, skuID, warehouseID)
			return err
		}
		if err := tx.Movements.Create(ctx, &models.StockMovement{
			SKUID:       skuID,
			WarehouseID: warehouseID,
			Kind:        models.MovementAdjust,
			Quantity:    delta,
			Note:        note,
			CreatedAt:   s.now(),
		}); err != nil {
			return err
		}
		ok = true
		out, err = tx.Stock.Get(ctx, skuID, warehouseID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, ok, nil
}

func (s *Store) ListStock(ctx context.Context, f models.StockFilter) ([]models.StockRecord, error) {
	return s.repo.Stock.List(ctx, f)
}

func (s *Store) WarehouseSummaries(ctx context.Context, warehouseID string) ([]models.WarehouseSummary, error) {
	return s.repo.Stock.Summaries(ctx, warehouseID)
}

func (s *Store) ListMovements(ctx context.Context, f models.MovementFilter) ([]models.StockMovement, error) {
	return s.repo.Movements.List(ctx, f)
}

// CreateHold reserves r.Quantity and inserts r as held. ok=false means not enough available stock.
func (s *Store) CreateHold(ctx context.Context, r *models.Reservation) (bool, error) {
	var ok bool
	err := s.repo.WithTx(func(tx *Repository) error {
		reserved, err := tx.Stock.TryReserve(ctx, r.SKUID, r.WarehouseID, r.Quantity)
		if err != nil || !reserved {
			return err
		}
		now := s.now()
		r.State = models.ReservationHeld
		r.CreatedAt = now
		r.UpdatedAt = now
		if err := tx.Reservations.Create(ctx, r); err != nil {
			return err
		}
		if err := tx.Movements.Create(ctx, movementFor(r, models.MovementReserve, now)); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Store) ReleaseHold(ctx context.Context, id uuid.UUID) (*models.Reservation, bool, error) {
	return s.finishHold(ctx, id, models.ReservationReleased)
}

func (s *Store) ConfirmHold(ctx context.Context, id uuid.UUID) (*models.Reservation, bool, error) {
	return s.finishHold(ctx, id, models.ReservationConfirmed)
}

// finishHold moves a held reservation to a terminal state. A reservation that is
// already terminal is returned unchanged with changed=false.
func (s *Store) finishHold(ctx context.Context, id uuid.UUID, to models.ReservationState) (*models.Reservation, bool, error) {
	var (
		out     *models.Reservation
		changed bool
	)
	err := s.repo.WithTx(func(tx *Repository) error {
		rec, err := tx.Reservations.GetByID(ctx, id)
		if err != nil || rec == nil {
			return err
		}
		out = rec
		if rec.State != models.ReservationHeld {
			return nil
		}
		won, err := tx.Reservations.Transition(ctx, id, models.ReservationHeld, to)
		if err != nil {
			return err
		}
		if !won {
			out, err = tx.Reservations.GetByID(ctx, id)
			return err
		}

		var applied bool
		kind := models.MovementRelease
		if to == models.ReservationConfirmed {
			kind = models.MovementConfirm
			applied, err = tx.Stock.Confirm(ctx, rec.SKUID, rec.WarehouseID, rec.Quantity)
		} else {
			applied, err = tx.Stock.Release(ctx, rec.SKUID, rec.WarehouseID, rec.Quantity)
		}
		if err != nil {
			return err
		}
		if !applied {
			return ErrStockOutOfSync
		}
		now := s.now()
		if err := tx.Movements.Create(ctx, movementFor(rec, kind, now)); err != nil {
			return err
		}
		rec.State = to
		rec.UpdatedAt = now
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, changed, nil
}

func (s *Store) GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return s.repo.Reservations.GetByID(ctx, id)
}

func (s *Store) ListReservationsByOrder(ctx context.Context, orderToken string) ([]models.Reservation, error) {
	return s.repo.Reservations.ListByOrder(ctx, orderToken)
}

func (s *Store) ListHeldBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Reservation, error) {
	return s.repo.Reservations.ListHeldBefore(ctx, cutoff, limit)
}

func movementFor(r *models.Reservation, kind models.MovementKind, at time.Time) *models.StockMovement {
	id := r.ID
	return &models.StockMovement{
		SKUID:         r.SKUID,
		WarehouseID:   r.WarehouseID,
		Kind:          kind,
		Quantity:      r.Quantity,
		ReservationID: &id,
		CreatedAt:     at,
	}
}
