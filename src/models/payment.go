package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents the method used to pay a bill
type PaymentMethod string

const (
	PaymentMethodPix          PaymentMethod = "pix"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodBoleto       PaymentMethod = "boleto"
	PaymentMethodDebit        PaymentMethod = "debit"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid reports whether m is a known payment method
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodPix, PaymentMethodBankTransfer, PaymentMethodBoleto,
		PaymentMethodDebit, PaymentMethodCash, PaymentMethodOther:
		return true
	}
	return false
}

// CreditCardPayment represents a (partial or full) payment of a bill
type CreditCardPayment struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	BillID        uuid.UUID       `json:"bill_id" db:"bill_id"`
	TransactionID *uuid.UUID      `json:"transaction_id,omitempty" db:"transaction_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	PaymentDate   time.Time       `json:"payment_date" db:"payment_date"`
	PaymentMethod PaymentMethod   `json:"payment_method" db:"payment_method"`
	Notes         string          `json:"notes,omitempty" db:"notes"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Validate validates the payment fields
func (p *CreditCardPayment) Validate() error {
	if !p.Amount.IsPositive() {
		return NewValidationError("amount", ErrInvalidAmount)
	}
	if !p.PaymentMethod.IsValid() {
		return NewValidationError("payment_method", ErrInvalidPaymentMethod)
	}
	return nil
}

// PaymentBuilder helps construct payments
type PaymentBuilder struct {
	payment *CreditCardPayment
}

// NewPaymentBuilder creates a new builder
func NewPaymentBuilder() *PaymentBuilder {
	now := time.Now()
	return &PaymentBuilder{
		payment: &CreditCardPayment{
			ID:            uuid.New(),
			PaymentMethod: PaymentMethodOther,
			PaymentDate:   now,
			CreatedAt:     now,
		},
	}
}

// WithBill sets the bill being paid
func (b *PaymentBuilder) WithBill(billID uuid.UUID) *PaymentBuilder {
	b.payment.BillID = billID
	return b
}

// WithAmount sets the payment amount
func (b *PaymentBuilder) WithAmount(amount decimal.Decimal) *PaymentBuilder {
	b.payment.Amount = RoundMoney(amount)
	return b
}

// WithMethod sets the payment method
func (b *PaymentBuilder) WithMethod(method PaymentMethod) *PaymentBuilder {
	if method != "" {
		b.payment.PaymentMethod = method
	}
	return b
}

// WithDate sets the payment date
func (b *PaymentBuilder) WithDate(date time.Time) *PaymentBuilder {
	if !date.IsZero() {
		b.payment.PaymentDate = date
	}
	return b
}

// WithTransaction links the payment to a ledger transaction
func (b *PaymentBuilder) WithTransaction(transactionID *uuid.UUID) *PaymentBuilder {
	b.payment.TransactionID = transactionID
	return b
}

// WithNotes sets free-form notes
func (b *PaymentBuilder) WithNotes(notes string) *PaymentBuilder {
	b.payment.Notes = notes
	return b
}

// Build creates the payment
func (b *PaymentBuilder) Build() *CreditCardPayment {
	return b.payment
}
