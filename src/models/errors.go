package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrNameRequired          = errors.New("name is required")
	ErrNameTooLong           = errors.New("name must be at most 100 characters")
	ErrInvalidBrand          = errors.New("unknown card brand")
	ErrInvalidLastFour       = errors.New("last four digits must be up to 4 digits")
	ErrInvalidTotalLimit     = errors.New("total limit must not be negative")
	ErrInvalidClosingDay     = errors.New("closing day must be between 1 and 31")
	ErrInvalidDueDay         = errors.New("due day must be between 1 and 31")
	ErrInvalidInterestRate   = errors.New("interest rate must be between 0 and 100")
	ErrInvalidAnnualFee      = errors.New("annual fee must not be negative")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInvalidInstallments   = errors.New("installments must be between 1 and 60")
	ErrDescriptionRequired   = errors.New("description is required")
	ErrInvalidPaymentMethod  = errors.New("unknown payment method")
	ErrInvalidReferenceMonth = errors.New("reference month must be between 1 and 12")
	ErrCardInactive          = errors.New("card is not active")
	ErrOverpayment           = errors.New("payment exceeds the remaining bill amount")
	ErrBillSettled           = errors.New("bill has no remaining amount")
)

// ValidationError reports malformed input on a single field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps a sentinel validation error with the offending field.
func NewValidationError(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// InsufficientLimitError is returned when a purchase (or the increase of an
// edited purchase) does not fit in the card's available limit.
type InsufficientLimitError struct {
	CardID    uuid.UUID
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientLimitError) Error() string {
	return fmt.Sprintf("insufficient limit on card %s: requested %s, available %s",
		e.CardID, e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

// HasPaymentsError is returned when deleting a bill (or a card owning such a
// bill) that already has payments recorded against it.
type HasPaymentsError struct {
	BillID       uuid.UUID
	PaymentCount int
}

func (e *HasPaymentsError) Error() string {
	return fmt.Sprintf("bill %s has %d payment(s) and cannot be deleted", e.BillID, e.PaymentCount)
}

// Entity names used in NotFoundError
const (
	EntityCard        = "credit card"
	EntityBill        = "bill"
	EntityPurchase    = "purchase"
	EntityInstallment = "installment"
	EntityPayment     = "payment"
)

// NotFoundError reports a reference to a record that does not exist.
type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// NewNotFoundError creates a NotFoundError for the given entity.
func NewNotFoundError(entity string, id uuid.UUID) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
