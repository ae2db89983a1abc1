package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxInstallments is the largest number of installments a purchase may be split into
const MaxInstallments = 60

// CreditCardPurchase represents a purchase made with a credit card.
// Amount is the total purchase amount; it is what counts against the
// card's limit regardless of installments or bill linkage.
type CreditCardPurchase struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	CardID     uuid.UUID  `json:"card_id" db:"card_id"`
	BillID     *uuid.UUID `json:"bill_id,omitempty" db:"bill_id"`
	CategoryID *uuid.UUID `json:"category_id,omitempty" db:"category_id"`

	Description  string    `json:"description" db:"description"`
	Merchant     string    `json:"merchant,omitempty" db:"merchant"`
	PurchaseDate time.Time `json:"purchase_date" db:"purchase_date"`

	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Installments      int             `json:"installments" db:"installments"`
	InstallmentAmount decimal.Decimal `json:"installment_amount" db:"installment_amount"`
	IsInstallment     bool            `json:"is_installment" db:"is_installment"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Validate validates the purchase fields
func (p *CreditCardPurchase) Validate() error {
	if strings.TrimSpace(p.Description) == "" {
		return NewValidationError("description", ErrDescriptionRequired)
	}
	if !p.Amount.IsPositive() {
		return NewValidationError("amount", ErrInvalidAmount)
	}
	if p.Installments < 1 || p.Installments > MaxInstallments {
		return NewValidationError("installments", ErrInvalidInstallments)
	}
	return nil
}

// Normalize fills derived fields: a single installment is never flagged as
// an installment purchase, and InstallmentAmount follows Amount.
func (p *CreditCardPurchase) Normalize() {
	p.Amount = RoundMoney(p.Amount)
	if p.Installments <= 1 {
		p.Installments = 1
		p.IsInstallment = false
	}
	if !p.IsInstallment {
		p.Installments = 1
	}
	p.InstallmentAmount = CalculateInstallmentAmount(p.Amount, p.Installments, p.IsInstallment)
}

// IsSplit reports whether the purchase is booked across installments
func (p *CreditCardPurchase) IsSplit() bool {
	return p.IsInstallment && p.Installments > 1
}

// CalculateInstallmentAmount returns round(amount / installments, 2) for
// installment purchases and the full amount otherwise
func CalculateInstallmentAmount(amount decimal.Decimal, installments int, isInstallment bool) decimal.Decimal {
	if !isInstallment || installments <= 1 {
		return RoundMoney(amount)
	}
	return amount.DivRound(decimal.NewFromInt(int64(installments)), 2)
}

// CreditCardInstallment is one monthly share of an installment purchase
type CreditCardInstallment struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	PurchaseID        uuid.UUID       `json:"purchase_id" db:"purchase_id"`
	BillID            *uuid.UUID      `json:"bill_id,omitempty" db:"bill_id"`
	InstallmentNumber int             `json:"installment_number" db:"installment_number"`
	DueDate           time.Time       `json:"due_date" db:"due_date"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	IsPaid            bool            `json:"is_paid" db:"is_paid"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// BuildInstallmentSchedule splits a purchase into monthly installments.
// Installment k falls in the cycle k-1 months after the purchase cycle. All
// installments carry the purchase's InstallmentAmount except the last, which
// absorbs the rounding remainder so the schedule sums exactly to Amount.
func BuildInstallmentSchedule(p *CreditCardPurchase, resolver BillCycleResolver, now time.Time) ([]*CreditCardInstallment, []BillCycle) {
	if !p.IsSplit() {
		return nil, nil
	}

	first := resolver.CycleContaining(p.PurchaseDate)
	installments := make([]*CreditCardInstallment, 0, p.Installments)
	cycles := make([]BillCycle, 0, p.Installments)
	allocated := decimal.Zero

	for k := 1; k <= p.Installments; k++ {
		cycle := resolver.Shift(first, k-1)

		amount := p.InstallmentAmount
		if k == p.Installments {
			amount = p.Amount.Sub(allocated)
		}
		allocated = allocated.Add(amount)

		installments = append(installments, &CreditCardInstallment{
			ID:                uuid.New(),
			PurchaseID:        p.ID,
			InstallmentNumber: k,
			DueDate:           cycle.DueDate,
			Amount:            amount,
			CreatedAt:         now,
		})
		cycles = append(cycles, cycle)
	}

	return installments, cycles
}
