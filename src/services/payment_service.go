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

// PaymentService applies payments to bills. Payments settle bills only;
// the card limit is driven by purchases and is not touched here.
type PaymentService struct {
	base
	bills *BillingService
}

// NewPaymentService creates a new payment service
func NewPaymentService(st store.Store, bills *BillingService, opts Options) *PaymentService {
	return &PaymentService{
		base:  newBase(st, opts, logging.ComponentPayment),
		bills: bills,
	}
}

// CreatePaymentRequest contains the data needed to pay a bill
type CreatePaymentRequest struct {
	BillID        uuid.UUID            `json:"bill_id"`
	Amount        decimal.Decimal      `json:"amount"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	PaymentDate   time.Time            `json:"payment_date"`
	TransactionID *uuid.UUID           `json:"transaction_id,omitempty"`
	Notes         string               `json:"notes,omitempty"`
}

// PaymentResult contains a payment and the bill it was applied to
type PaymentResult struct {
	Payment *models.CreditCardPayment `json:"payment"`
	Bill    *models.CreditCardBill    `json:"bill"`
}

// CreatePayment records a payment against a bill and re-derives the bill's
// paid and remaining amounts and status. Payments above the remaining
// amount are rejected.
func (s *PaymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentResult, error) {
	now := s.now()

	date := req.PaymentDate
	if date.IsZero() {
		date = now
	}

	payment := models.NewPaymentBuilder().
		WithBill(req.BillID).
		WithAmount(req.Amount).
		WithMethod(req.PaymentMethod).
		WithDate(date).
		WithTransaction(req.TransactionID).
		WithNotes(req.Notes).
		Build()
	payment.CreatedAt = now

	if err := payment.Validate(); err != nil {
		return nil, err
	}

	var (
		result *PaymentResult
		evs    []events.Event
	)

	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		evs = nil

		bill, err := tx.Bills().Get(ctx, req.BillID)
		if err != nil {
			return err
		}

		totals, err := tx.Bills().Totals(ctx, bill.ID)
		if err != nil {
			return fmt.Errorf("failed to compute bill totals: %w", err)
		}
		bill.ApplyTotals(totals, s.policy)

		if !bill.RemainingAmount.IsPositive() {
			return models.NewValidationError("amount", models.ErrBillSettled)
		}
		if payment.Amount.GreaterThan(bill.RemainingAmount) {
			return models.NewValidationError("amount", models.ErrOverpayment)
		}

		if err := tx.Payments().Create(ctx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		change, err := s.bills.recomputeTx(ctx, tx, bill)
		if err != nil {
			return err
		}
		evs = append(evs, change.events(now)...)

		result = &PaymentResult{Payment: payment, Bill: bill}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment recorded",
		logging.FieldPayment, payment.ID,
		logging.FieldBillID, payment.BillID,
		logging.FieldAmount, payment.Amount.StringFixed(2),
		logging.FieldMethod, payment.PaymentMethod,
		logging.FieldStatus, result.Bill.Status,
		"remaining_amount", result.Bill.RemainingAmount.StringFixed(2))

	evs = append([]events.Event{
		events.New(events.PaymentCreated, result.Bill.CardID, payment.ID, payment, now),
	}, evs...)
	s.publish(ctx, evs...)

	return result, nil
}

// DeletePayment removes a payment and recomputes its bill; a paid bill goes
// back to open, closed or overdue
func (s *PaymentService) DeletePayment(ctx context.Context, paymentID uuid.UUID) (*PaymentResult, error) {
	var (
		result *PaymentResult
		evs    []events.Event
	)
	now := s.now()

	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		evs = nil

		payment, err := tx.Payments().Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := tx.Payments().Delete(ctx, paymentID); err != nil {
			return fmt.Errorf("failed to delete payment: %w", err)
		}

		bill, err := tx.Bills().Get(ctx, payment.BillID)
		if err != nil {
			return err
		}
		change, err := s.bills.recomputeTx(ctx, tx, bill)
		if err != nil {
			return err
		}
		evs = append(evs, change.events(now)...)

		result = &PaymentResult{Payment: payment, Bill: bill}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment deleted",
		logging.FieldPayment, paymentID,
		logging.FieldBillID, result.Bill.ID,
		logging.FieldAmount, result.Payment.Amount.StringFixed(2),
		logging.FieldStatus, result.Bill.Status)

	evs = append([]events.Event{
		events.New(events.PaymentDeleted, result.Bill.CardID, paymentID, result.Payment, now),
	}, evs...)
	s.publish(ctx, evs...)

	return result, nil
}

// GetPayment retrieves a payment by ID
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.CreditCardPayment, error) {
	return s.store.Payments().Get(ctx, paymentID)
}

// ListPayments returns the payments of a bill ordered by payment date
func (s *PaymentService) ListPayments(ctx context.Context, billID uuid.UUID) ([]*models.CreditCardPayment, error) {
	if _, err := s.store.Bills().Get(ctx, billID); err != nil {
		return nil, err
	}
	payments, err := s.store.Payments().ListByBill(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
