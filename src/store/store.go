// Package store defines the persistence boundary of the card engine.
//
// Services depend only on these interfaces; the postgres package provides
// the production implementation and the memory package an in-process one
// used by tests and demos. Every lookup of a missing row returns a
// *models.NotFoundError.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/models"
	"github.com/shopspring/decimal"
)

// Store errors
var (
	// ErrDuplicate is returned when an insert violates a uniqueness constraint,
	// e.g. a second bill for the same card and reference month.
	ErrDuplicate = errors.New("duplicate record")
	// ErrReferenced is returned when a delete would orphan dependent rows.
	ErrReferenced = errors.New("record is still referenced")
	// ErrConflict is returned when a transaction lost a race with a
	// concurrent one and may succeed when run again.
	ErrConflict = errors.New("transaction conflict")
)

// CardRepository persists credit cards
type CardRepository interface {
	Create(ctx context.Context, card *models.CreditCard) error
	Get(ctx context.Context, id uuid.UUID) (*models.CreditCard, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.CreditCard, error)
	Update(ctx context.Context, card *models.CreditCard) error
	// UpdateLimit writes only the derived limit columns
	UpdateLimit(ctx context.Context, snapshot models.LimitSnapshot, updatedAt time.Time) error
	// Delete removes the card together with its bills, purchases and
	// installments. It fails with ErrReferenced if any bill has payments.
	Delete(ctx context.Context, id uuid.UUID) error
}

// BillRepository persists bills
type BillRepository interface {
	Create(ctx context.Context, bill *models.CreditCardBill) error
	Get(ctx context.Context, id uuid.UUID) (*models.CreditCardBill, error)
	GetByReference(ctx context.Context, cardID uuid.UUID, month, year int) (*models.CreditCardBill, error)
	ListByCard(ctx context.Context, cardID uuid.UUID) ([]*models.CreditCardBill, error)
	// ListUnsettled returns every bill not in the paid status
	ListUnsettled(ctx context.Context) ([]*models.CreditCardBill, error)
	Update(ctx context.Context, bill *models.CreditCardBill) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Totals aggregates the charges and payments booked to a bill
	Totals(ctx context.Context, id uuid.UUID) (models.BillTotals, error)
}

// PurchaseRepository persists purchases
type PurchaseRepository interface {
	Create(ctx context.Context, purchase *models.CreditCardPurchase) error
	Get(ctx context.Context, id uuid.UUID) (*models.CreditCardPurchase, error)
	ListByCard(ctx context.Context, cardID uuid.UUID) ([]*models.CreditCardPurchase, error)
	ListByBill(ctx context.Context, billID uuid.UUID) ([]*models.CreditCardPurchase, error)
	Update(ctx context.Context, purchase *models.CreditCardPurchase) error
	Delete(ctx context.Context, id uuid.UUID) error
	// SumByCard returns the summed amount of every purchase of the card
	SumByCard(ctx context.Context, cardID uuid.UUID) (decimal.Decimal, error)
	// UnlinkBill sets bill_id to null on every purchase of the bill
	UnlinkBill(ctx context.Context, billID uuid.UUID) (int64, error)
}

// InstallmentRepository persists installment schedules
type InstallmentRepository interface {
	CreateBatch(ctx context.Context, installments []*models.CreditCardInstallment) error
	ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]*models.CreditCardInstallment, error)
	DeleteByPurchase(ctx context.Context, purchaseID uuid.UUID) error
	UnlinkBill(ctx context.Context, billID uuid.UUID) (int64, error)
}

// PaymentRepository persists bill payments
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.CreditCardPayment) error
	Get(ctx context.Context, id uuid.UUID) (*models.CreditCardPayment, error)
	ListByBill(ctx context.Context, billID uuid.UUID) ([]*models.CreditCardPayment, error)
	CountByBill(ctx context.Context, billID uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repositories groups the per-entity repositories bound to one connection
// or transaction
type Repositories interface {
	Cards() CardRepository
	Bills() BillRepository
	Purchases() PurchaseRepository
	Installments() InstallmentRepository
	Payments() PaymentRepository
}

// Store is a Repositories bound to the database plus transaction control.
// WithTx runs fn in a serializable transaction, committing when fn returns
// nil and rolling back otherwise.
type Store interface {
	Repositories
	WithTx(ctx context.Context, fn func(tx Repositories) error) error
	Close() error
}
