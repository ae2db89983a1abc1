package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CardSummary aggregates limits and outstanding bills across a user's cards
type CardSummary struct {
	CardCount           int             `json:"card_count"`
	ActiveCardCount     int             `json:"active_card_count"`
	TotalLimit          decimal.Decimal `json:"total_limit"`
	TotalUsedLimit      decimal.Decimal `json:"total_used_limit"`
	TotalAvailableLimit decimal.Decimal `json:"total_available_limit"`
	TotalOutstanding    decimal.Decimal `json:"total_outstanding"` // Remaining of every unpaid bill
	OverdueAmount       decimal.Decimal `json:"overdue_amount"`    // Remaining of overdue bills
	OverdueBillCount    int             `json:"overdue_bill_count"`
	NextDueDate         *time.Time      `json:"next_due_date,omitempty"`
}

// NewCardSummary returns a zeroed summary
func NewCardSummary() CardSummary {
	return CardSummary{
		TotalLimit:          decimal.Zero,
		TotalUsedLimit:      decimal.Zero,
		TotalAvailableLimit: decimal.Zero,
		TotalOutstanding:    decimal.Zero,
		OverdueAmount:       decimal.Zero,
	}
}

// AddCard folds a card's limit snapshot into the summary
func (s *CardSummary) AddCard(card *CreditCard) {
	s.CardCount++
	if card.IsActive {
		s.ActiveCardCount++
	}
	s.TotalLimit = s.TotalLimit.Add(card.TotalLimit)
	s.TotalUsedLimit = s.TotalUsedLimit.Add(card.UsedLimit)
	s.TotalAvailableLimit = s.TotalAvailableLimit.Add(card.AvailableLimit)
}

// AddBill folds an unpaid bill into the outstanding and due-date totals.
// Only open, closed and overdue bills with a remaining amount count.
func (s *CardSummary) AddBill(bill *CreditCardBill) {
	if bill.Status == BillStatusPaid || !bill.RemainingAmount.IsPositive() {
		return
	}

	s.TotalOutstanding = s.TotalOutstanding.Add(bill.RemainingAmount)

	if bill.Status == BillStatusOverdue {
		s.OverdueAmount = s.OverdueAmount.Add(bill.RemainingAmount)
		s.OverdueBillCount++
	}

	if s.NextDueDate == nil || bill.DueDate.Before(*s.NextDueDate) {
		due := bill.DueDate
		s.NextDueDate = &due
	}
}
