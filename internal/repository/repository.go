package repository

import "gorm.io/gorm"

type Repository struct {
	DB           *gorm.DB
	Reference    ReferenceRepo
	Products     ProductRepo
	Stock        StockRepo
	Reservations ReservationRepo
	Movements    MovementRepo
}

func buildRepository(db *gorm.DB) *Repository {
	return &Repository{
		DB:           db,
		Reference:    NewReferenceRepo(db),
		Products:     NewProductRepo(db),
		Stock:        NewStockRepo(db),
		Reservations: NewReservationRepo(db),
		Movements:    NewMovementRepo(db),
	}
}

func New(db *gorm.DB) *Repository { return buildRepository(db) }

// WithTx runs fn with every repo bound to one transaction.
func (r *Repository) WithTx(fn func(tx *Repository) error) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return fn(buildRepository(tx))
	})
}
