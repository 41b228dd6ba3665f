package reservation

import (
	"allocation-service/internal/apperr"
	"allocation-service/internal/models"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrReservationNotFound = fmt.Errorf("reservation %w", apperr.ErrNotFound)

// Store must apply each hold transition and its stock change as one atomic unit.
type Store interface {
	// CreateHold returns false when available stock is below r.Quantity.
	CreateHold(ctx context.Context, r *models.Reservation) (bool, error)
	// ReleaseHold / ConfirmHold return changed=false for a terminal reservation
	// and a nil reservation when id is unknown.
	ReleaseHold(ctx context.Context, id uuid.UUID) (*models.Reservation, bool, error)
	ConfirmHold(ctx context.Context, id uuid.UUID) (*models.Reservation, bool, error)
	GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ListReservationsByOrder(ctx context.Context, orderToken string) ([]models.Reservation, error)
	ListHeldBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Reservation, error)
}

type Manager struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewManager(store Store, log *zap.Logger) *Manager {
	return &Manager{store: store, log: log, now: time.Now}
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Reserve holds quantity units of sku at warehouseID. Rejection is an expected
// outcome under concurrency and is reported as apperr.ErrReservationRejected.
func (m *Manager) Reserve(ctx context.Context, orderToken string, sku models.SKU, warehouseID string, quantity int64) (*models.Reservation, error) {
	orderToken = strings.TrimSpace(orderToken)
	switch {
	case orderToken == "":
		return nil, apperr.Invalid("order_token", "required")
	case sku.ProductID == uuid.Nil:
		return nil, apperr.Invalid("sku_id", "required")
	case warehouseID == "":
		return nil, apperr.Invalid("warehouse_id", "required")
	case quantity <= 0:
		return nil, apperr.Invalid("quantity", "must be greater than zero")
	}

	r := &models.Reservation{
		ID:          uuid.New(),
		OrderToken:  orderToken,
		SKUID:       sku.ID(),
		WarehouseID: warehouseID,
		Quantity:    quantity,
	}
	ok, err := m.store.CreateHold(ctx, r)
	if err != nil {
		return nil, apperr.Storage("create hold", err)
	}
	if !ok {
		m.log.Info("reservation rejected",
			zap.String("order_token", orderToken),
			zap.String("sku_id", r.SKUID),
			zap.String("warehouse_id", warehouseID),
			zap.Int64("quantity", quantity),
		)
		return nil, apperr.ErrReservationRejected
	}
	return r, nil
}

// Release returns held stock to available. Repeating it is a no-op.
func (m *Manager) Release(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	r, changed, err := m.store.ReleaseHold(ctx, id)
	return m.finish("release", id, r, changed, err)
}

// ConfirmDeduction removes held stock from on_hand permanently. Repeating it is a no-op.
func (m *Manager) ConfirmDeduction(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	r, changed, err := m.store.ConfirmHold(ctx, id)
	return m.finish("confirm", id, r, changed, err)
}

func (m *Manager) finish(op string, id uuid.UUID, r *models.Reservation, changed bool, err error) (*models.Reservation, error) {
	if err != nil {
		return nil, apperr.Storage(op+" hold", err)
	}
	if r == nil {
		return nil, ErrReservationNotFound
	}
	if !changed {
		m.log.Debug("reservation already terminal",
			zap.String("op", op),
			zap.String("reservation_id", id.String()),
			zap.String("state", string(r.State)),
		)
	}
	return r, nil
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	r, err := m.store.GetReservation(ctx, id)
	if err != nil {
		return nil, apperr.Storage("get reservation", err)
	}
	if r == nil {
		return nil, ErrReservationNotFound
	}
	return r, nil
}

// FindByOrderToken lists the attempt's reservations in creation order.
func (m *Manager) FindByOrderToken(ctx context.Context, orderToken string) ([]models.Reservation, error) {
	list, err := m.store.ListReservationsByOrder(ctx, orderToken)
	if err != nil {
		return nil, apperr.Storage("list reservations", err)
	}
	return list, nil
}

// ReleaseStale releases held reservations older than maxAge. It keeps going
// past individual failures and reports the first one.
func (m *Manager) ReleaseStale(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	cutoff := m.now().Add(-maxAge)
	list, err := m.store.ListHeldBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, apperr.Storage("list stale holds", err)
	}

	released := 0
	var firstErr error
	for _, r := range list {
		_, changed, err := m.store.ReleaseHold(ctx, r.ID)
		if err != nil {
			m.log.Error("failed to release stale reservation",
				zap.String("reservation_id", r.ID.String()),
				zap.String("order_token", r.OrderToken),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = apperr.Storage("release stale hold", err)
			}
			continue
		}
		if changed {
			released++
		}
	}
	if released > 0 {
		m.log.Info("released stale reservations", zap.Int("count", released), zap.Time("cutoff", cutoff))
	}
	return released, firstErr
}
