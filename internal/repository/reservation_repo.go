package repository

import (
	"allocation-service/internal/models"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReservationRepo interface {
	Create(ctx context.Context, r *models.Reservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ListByOrder(ctx context.Context, orderToken string) ([]models.Reservation, error)
	// Transition меняет состояние только если текущее == from (CAS)
	Transition(ctx context.Context, id uuid.UUID, from, to models.ReservationState) (bool, error)
	ListHeldBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Reservation, error)
}

type reservationRepo struct{ db *gorm.DB }

func NewReservationRepo(db *gorm.DB) ReservationRepo { return &reservationRepo{db: db} }

func (r *reservationRepo) Create(ctx context.Context, rec *models.Reservation) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *reservationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var rec models.Reservation
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *reservationRepo) ListByOrder(ctx context.Context, orderToken string) ([]models.Reservation, error) {
	var list []models.Reservation
	err := r.db.WithContext(ctx).
		Where("order_token = ?", orderToken).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	return list, err
}

func (r *reservationRepo) Transition(ctx context.Context, id uuid.UUID, from, to models.ReservationState) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND state = ?", id, from).
		Updates(map[string]any{"state": to, "updated_at": gorm.Expr("now()")})
	return tx.RowsAffected > 0, tx.Error
}

func (r *reservationRepo) ListHeldBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Reservation, error) {
	var list []models.Reservation
	q := r.db.WithContext(ctx).
		Where("state = ? AND created_at < ?", models.ReservationHeld, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&list).Error
	return list, err
}
