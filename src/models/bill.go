package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillStatus represents the status of a credit card bill
type BillStatus string

const (
	BillStatusOpen    BillStatus = "open"    // Cycle still accepting purchases
	BillStatusClosed  BillStatus = "closed"  // Closing date passed, awaiting payment
	BillStatusPaid    BillStatus = "paid"    // Remaining amount settled
	BillStatusOverdue BillStatus = "overdue" // Due date passed with remaining amount
)

// IsValid reports whether s is a known status
func (s BillStatus) IsValid() bool {
	switch s {
	case BillStatusOpen, BillStatusClosed, BillStatusPaid, BillStatusOverdue:
		return true
	}
	return false
}

// CreditCardBill represents the monthly bill of a credit card.
// There is at most one bill per (card, reference month, reference year).
type CreditCardBill struct {
	ID     uuid.UUID `json:"id" db:"id"`
	CardID uuid.UUID `json:"card_id" db:"card_id"`

	// Cycle identification
	ReferenceMonth int       `json:"reference_month" db:"reference_month"`
	ReferenceYear  int       `json:"reference_year" db:"reference_year"`
	OpeningDate    time.Time `json:"opening_date" db:"opening_date"`
	ClosingDate    time.Time `json:"closing_date" db:"closing_date"`
	DueDate        time.Time `json:"due_date" db:"due_date"`

	Status BillStatus `json:"status" db:"status"`

	// Amounts; TotalAmount, PaidAmount and RemainingAmount are derived
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount" db:"remaining_amount"`
	MinimumPayment  decimal.Decimal `json:"minimum_payment" db:"minimum_payment"`
	InterestAmount  decimal.Decimal `json:"interest_amount" db:"interest_amount"`
	LateFee         decimal.Decimal `json:"late_fee" db:"late_fee"`

	PaymentDate    *time.Time `json:"payment_date,omitempty" db:"payment_date"`
	FeesAssessedAt *time.Time `json:"fees_assessed_at,omitempty" db:"fees_assessed_at"` // Set once late charges were applied
	Notes          string     `json:"notes,omitempty" db:"notes"`

	// Audit
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewBill creates an open bill for the given cycle with zeroed amounts
func NewBill(cardID uuid.UUID, cycle BillCycle, now time.Time) *CreditCardBill {
	return &CreditCardBill{
		ID:              uuid.New(),
		CardID:          cardID,
		ReferenceMonth:  cycle.ReferenceMonth,
		ReferenceYear:   cycle.ReferenceYear,
		OpeningDate:     cycle.OpeningDate,
		ClosingDate:     cycle.ClosingDate,
		DueDate:         cycle.DueDate,
		Status:          BillStatusOpen,
		TotalAmount:     decimal.Zero,
		PaidAmount:      decimal.Zero,
		RemainingAmount: decimal.Zero,
		MinimumPayment:  decimal.Zero,
		InterestAmount:  decimal.Zero,
		LateFee:         decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Cycle returns the date window of the bill
func (b *CreditCardBill) Cycle() BillCycle {
	return BillCycle{
		ReferenceMonth: b.ReferenceMonth,
		ReferenceYear:  b.ReferenceYear,
		OpeningDate:    b.OpeningDate,
		ClosingDate:    b.ClosingDate,
		DueDate:        b.DueDate,
	}
}

// BillTotals are the aggregates a bill is derived from
type BillTotals struct {
	Charges  decimal.Decimal // single-charge purchases plus installments booked to the bill
	Payments decimal.Decimal // sum of payments recorded against the bill
}

// ApplyTotals re-derives the bill's monetary fields from its aggregates.
// Total = charges + interest + late fee; remaining never goes below zero.
func (b *CreditCardBill) ApplyTotals(totals BillTotals, policy BillingPolicy) {
	b.TotalAmount = RoundMoney(totals.Charges.Add(b.InterestAmount).Add(b.LateFee))
	b.PaidAmount = RoundMoney(totals.Payments)
	b.RemainingAmount = b.CalculateRemaining()
	b.MinimumPayment = policy.CalculateMinimumPayment(b.TotalAmount)
}

// CalculateRemaining returns the balance still owed after payments
func (b *CreditCardBill) CalculateRemaining() decimal.Decimal {
	remaining := b.TotalAmount.Sub(b.PaidAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// ResolveStatus derives the bill status at now:
// paid once something was paid and nothing remains, overdue after the due
// date with a remaining amount, closed after the closing date, open otherwise.
func (b *CreditCardBill) ResolveStatus(now time.Time) BillStatus {
	today := DateOnly(now.In(b.DueDate.Location()))

	if b.IsPaidInFull() {
		return BillStatusPaid
	}
	if today.After(b.DueDate) && b.RemainingAmount.IsPositive() {
		return BillStatusOverdue
	}
	if today.After(b.ClosingDate) {
		return BillStatusClosed
	}
	return BillStatusOpen
}

// IsPaidInFull checks if the full bill has been paid
func (b *CreditCardBill) IsPaidInFull() bool {
	return b.PaidAmount.IsPositive() && !b.RemainingAmount.IsPositive()
}

// IsOverdue checks if the bill is past due
func (b *CreditCardBill) IsOverdue(currentDate time.Time) bool {
	return b.ResolveStatus(currentDate) == BillStatusOverdue
}

// DaysOverdue returns the number of days past the due date
func (b *CreditCardBill) DaysOverdue(currentDate time.Time) int {
	if !b.IsOverdue(currentDate) {
		return 0
	}
	today := DateOnly(currentDate.In(b.DueDate.Location()))
	return int(today.Sub(b.DueDate).Hours() / 24)
}

// HasLateCharges reports whether the bill carries a late fee or interest
func (b *CreditCardBill) HasLateCharges() bool {
	return b.LateFee.IsPositive() || b.InterestAmount.IsPositive()
}

// FeesAssessed reports whether late charges were ever applied to the bill,
// including charges that were waived afterwards
func (b *CreditCardBill) FeesAssessed() bool {
	return b.FeesAssessedAt != nil
}

// BillSummary provides a summary view of a bill
type BillSummary struct {
	BillID          uuid.UUID       `json:"bill_id"`
	CardID          uuid.UUID       `json:"card_id"`
	ReferenceMonth  int             `json:"reference_month"`
	ReferenceYear   int             `json:"reference_year"`
	ClosingDate     time.Time       `json:"closing_date"`
	DueDate         time.Time       `json:"due_date"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	MinimumPayment  decimal.Decimal `json:"minimum_payment"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Status          BillStatus      `json:"status"`
	DaysUntilDue    int             `json:"days_until_due"`
	DaysOverdue     int             `json:"days_overdue"`
}

// ToSummary converts a bill to a BillSummary
func (b *CreditCardBill) ToSummary(currentDate time.Time) BillSummary {
	summary := BillSummary{
		BillID:          b.ID,
		CardID:          b.CardID,
		ReferenceMonth:  b.ReferenceMonth,
		ReferenceYear:   b.ReferenceYear,
		ClosingDate:     b.ClosingDate,
		DueDate:         b.DueDate,
		TotalAmount:     b.TotalAmount,
		MinimumPayment:  b.MinimumPayment,
		PaidAmount:      b.PaidAmount,
		RemainingAmount: b.RemainingAmount,
		Status:          b.Status,
	}

	today := DateOnly(currentDate.In(b.DueDate.Location()))
	if today.Before(b.DueDate) {
		summary.DaysUntilDue = int(b.DueDate.Sub(today).Hours() / 24)
	} else {
		summary.DaysOverdue = b.DaysOverdue(currentDate)
	}

	return summary
}
