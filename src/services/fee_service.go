package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/events"
	"github.com/livefire2015/ez-cards/src/logging"
	"github.com/livefire2015/ez-cards/src/models"
	"github.com/livefire2015/ez-cards/src/store"
	"github.com/shopspring/decimal"
)

// FeeService handles late fee and interest assessment on overdue bills
type FeeService struct {
	base
	bills *BillingService
}

// NewFeeService creates a new fee service
func NewFeeService(st store.Store, opts Options) *FeeService {
	return &FeeService{base: newBase(st, opts, logging.ComponentFees)}
}

// FeeAssessmentResult contains the charges assessed on one bill
type FeeAssessmentResult struct {
	BillID      uuid.UUID       `json:"bill_id"`
	CardID      uuid.UUID       `json:"card_id"`
	BaseAmount  decimal.Decimal `json:"base_amount"` // Remaining amount the charges were computed on
	LateFee     decimal.Decimal `json:"late_fee"`
	Interest    decimal.Decimal `json:"interest"`
	DaysOverdue int             `json:"days_overdue"`
	AssessedAt  time.Time       `json:"assessed_at"`
}

// Total returns the sum of the assessed charges
func (r *FeeAssessmentResult) Total() decimal.Decimal {
	return r.LateFee.Add(r.Interest)
}

// assessOverdue sets the late fee and one month of interest on a bill that
// just turned overdue. A bill is charged at most once, even after a waiver;
// nil means nothing was assessed.
func (s *FeeService) assessOverdue(card *models.CreditCard, bill *models.CreditCardBill, now time.Time) *FeeAssessmentResult {
	if bill.FeesAssessed() || !bill.RemainingAmount.IsPositive() {
		return nil
	}

	result := &FeeAssessmentResult{
		BillID:      bill.ID,
		CardID:      card.ID,
		BaseAmount:  bill.RemainingAmount,
		LateFee:     s.policy.CalculateLateFee(bill.RemainingAmount),
		Interest:    card.CalculateInterest(bill.RemainingAmount),
		DaysOverdue: bill.DaysOverdue(now),
		AssessedAt:  now,
	}
	if result.Total().IsZero() {
		return nil
	}

	assessedAt := now
	bill.LateFee = result.LateFee
	bill.InterestAmount = result.Interest
	bill.FeesAssessedAt = &assessedAt
	return result
}

// WaiveFeesResult contains the charges removed from a bill
type WaiveFeesResult struct {
	Bill           *models.CreditCardBill `json:"bill"`
	WaivedLateFee  decimal.Decimal        `json:"waived_late_fee"`
	WaivedInterest decimal.Decimal        `json:"waived_interest"`
	Reason         string                 `json:"reason,omitempty"`
}

// WaiveFees clears the late fee and interest of a bill and re-derives its
// totals. Waived charges are not assessed again.
func (s *FeeService) WaiveFees(ctx context.Context, billID uuid.UUID, reason string) (*WaiveFeesResult, error) {
	var (
		result *WaiveFeesResult
		evs    []events.Event
	)

	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		evs = nil

		bill, err := tx.Bills().Get(ctx, billID)
		if err != nil {
			return err
		}
		if !bill.HasLateCharges() {
			result = &WaiveFeesResult{Bill: bill, WaivedLateFee: decimal.Zero, WaivedInterest: decimal.Zero}
			return nil
		}

		result = &WaiveFeesResult{
			WaivedLateFee:  bill.LateFee,
			WaivedInterest: bill.InterestAmount,
			Reason:         reason,
		}

		bill.LateFee = decimal.Zero
		bill.InterestAmount = decimal.Zero
		if reason != "" {
			bill.Notes = fmt.Sprintf("fees waived: %s", reason)
		}

		change, err := s.bills.recomputeTx(ctx, tx, bill)
		if err != nil {
			return err
		}
		evs = append(evs, change.events(s.now())...)
		result.Bill = bill
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to waive fees: %w", err)
	}

	if result.WaivedLateFee.IsPositive() || result.WaivedInterest.IsPositive() {
		s.logger.InfoContext(ctx, "fees waived",
			logging.FieldBillID, billID,
			"late_fee", result.WaivedLateFee.StringFixed(2),
			"interest", result.WaivedInterest.StringFixed(2),
			"reason", reason)
	}
	s.publish(ctx, evs...)

	return result, nil
}
