package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/events"
	"github.com/livefire2015/ez-cards/src/logging"
	"github.com/livefire2015/ez-cards/src/models"
	"github.com/livefire2015/ez-cards/src/store"
)

// BillingService manages bills: resolution of the current cycle, totals,
// status transitions and deletion
type BillingService struct {
	base
	limits *LimitService
	fees   *FeeService
}

// NewBillingService creates a new billing service
func NewBillingService(st store.Store, limits *LimitService, fees *FeeService, opts Options) *BillingService {
	return &BillingService{
		base:   newBase(st, opts, logging.ComponentBilling),
		limits: limits,
		fees:   fees,
	}
}

// billChange records what a recomputation did to a bill
type billChange struct {
	bill     *models.CreditCardBill
	previous models.BillStatus
	fees     *FeeAssessmentResult
}

func (c billChange) statusChanged() bool {
	return c.previous != c.bill.Status
}

func (c billChange) events(at time.Time) []events.Event {
	var evs []events.Event
	if c.statusChanged() {
		evs = append(evs, events.New(events.BillStatusChanged, c.bill.CardID, c.bill.ID, map[string]any{
			"from":             c.previous,
			"to":               c.bill.Status,
			"remaining_amount": c.bill.RemainingAmount,
		}, at))
	}
	if c.fees != nil {
		evs = append(evs, events.New(events.BillFeesAssessed, c.bill.CardID, c.bill.ID, c.fees, at))
	}
	return evs
}

// GetCurrentOrCreateBill returns the card's current bill, creating it open
// with zeroed amounts when it does not exist yet
func (s *BillingService) GetCurrentOrCreateBill(ctx context.Context, cardID uuid.UUID) (*models.CreditCardBill, error) {
	return s.getOrCreate(ctx, cardID, func(r models.BillCycleResolver) models.BillCycle {
		return r.CurrentCycle(s.now())
	})
}

// GetOrCreateBillForDate returns the bill whose cycle contains date,
// creating it when needed
func (s *BillingService) GetOrCreateBillForDate(ctx context.Context, cardID uuid.UUID, date time.Time) (*models.CreditCardBill, error) {
	return s.getOrCreate(ctx, cardID, func(r models.BillCycleResolver) models.BillCycle {
		return r.CycleContaining(date)
	})
}

func (s *BillingService) getOrCreate(
	ctx context.Context,
	cardID uuid.UUID,
	pick func(models.BillCycleResolver) models.BillCycle,
) (*models.CreditCardBill, error) {
	var (
		bill    *models.CreditCardBill
		created bool
	)

	err := s.withBillRace(ctx, func(tx store.Repositories) error {
		card, err := tx.Cards().Get(ctx, cardID)
		if err != nil {
			return err
		}
		bill, created, err = s.getOrCreateTx(ctx, tx, card.ID, pick(card.Resolver(s.loc)))
		return err
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.publish(ctx, events.New(events.BillCreated, bill.CardID, bill.ID, bill.Cycle(), s.now()))
	}
	return bill, nil
}

// getOrCreateTx looks the bill of cycle up by reference month and creates
// it when absent
func (s *BillingService) getOrCreateTx(
	ctx context.Context,
	tx store.Repositories,
	cardID uuid.UUID,
	cycle models.BillCycle,
) (*models.CreditCardBill, bool, error) {
	bill, err := tx.Bills().GetByReference(ctx, cardID, cycle.ReferenceMonth, cycle.ReferenceYear)
	if err == nil {
		return bill, false, nil
	}
	if !models.IsNotFound(err) {
		return nil, false, err
	}

	now := s.now()
	bill = models.NewBill(cardID, cycle, now)
	bill.Status = bill.ResolveStatus(now)

	if err := tx.Bills().Create(ctx, bill); err != nil {
		return nil, false, err
	}

	s.logger.InfoContext(ctx, "bill created",
		logging.FieldCardID, cardID,
		logging.FieldBillID, bill.ID,
		"reference", fmt.Sprintf("%02d/%d", bill.ReferenceMonth, bill.ReferenceYear),
		"due_date", bill.DueDate.Format(time.DateOnly))

	return bill, true, nil
}

// withBillRace runs fn in a transaction and runs it once more when a
// concurrent writer created the same bill first or the transaction could
// not be serialized; the second attempt then reads the winner's row
func (s *BillingService) withBillRace(ctx context.Context, fn func(tx store.Repositories) error) error {
	err := s.store.WithTx(ctx, fn)
	if errors.Is(err, store.ErrDuplicate) || errors.Is(err, store.ErrConflict) {
		s.logger.DebugContext(ctx, "bill written concurrently, retrying", logging.FieldError, err)
		err = s.store.WithTx(ctx, fn)
	}
	return err
}

// recomputeTx re-derives totals, minimum payment, status and settlement
// date of bill at now, assessing late charges the first time the bill is
// found overdue, and stores the result
func (s *BillingService) recomputeTx(ctx context.Context, tx store.Repositories, bill *models.CreditCardBill) (billChange, error) {
	return s.recomputeAtTx(ctx, tx, bill, s.now())
}

func (s *BillingService) recomputeAtTx(
	ctx context.Context,
	tx store.Repositories,
	bill *models.CreditCardBill,
	now time.Time,
) (billChange, error) {
	change := billChange{bill: bill, previous: bill.Status}

	totals, err := tx.Bills().Totals(ctx, bill.ID)
	if err != nil {
		return change, fmt.Errorf("failed to compute bill totals: %w", err)
	}

	bill.ApplyTotals(totals, s.policy)
	status := bill.ResolveStatus(now)

	if status == models.BillStatusOverdue && !bill.FeesAssessed() {
		card, err := tx.Cards().Get(ctx, bill.CardID)
		if err != nil {
			return change, err
		}
		if fees := s.fees.assessOverdue(card, bill, now); fees != nil {
			change.fees = fees
			bill.ApplyTotals(totals, s.policy)
			status = bill.ResolveStatus(now)
		}
	}

	bill.Status = status
	if status == models.BillStatusPaid {
		if bill.PaymentDate == nil {
			settled, err := s.settlementDateTx(ctx, tx, bill.ID, now)
			if err != nil {
				return change, err
			}
			bill.PaymentDate = &settled
		}
	} else {
		bill.PaymentDate = nil
	}
	bill.UpdatedAt = now

	if err := tx.Bills().Update(ctx, bill); err != nil {
		return change, fmt.Errorf("failed to update bill: %w", err)
	}

	if change.statusChanged() {
		s.logger.InfoContext(ctx, "bill status changed",
			logging.FieldBillID, bill.ID,
			"from", change.previous,
			"to", bill.Status)
	}
	if change.fees != nil {
		s.logger.InfoContext(ctx, "late charges assessed",
			logging.FieldBillID, bill.ID,
			"late_fee", change.fees.LateFee.StringFixed(2),
			"interest", change.fees.Interest.StringFixed(2),
			"days_overdue", change.fees.DaysOverdue)
	}

	return change, nil
}

// recomputeIDsTx recomputes every listed bill once, skipping ids that no
// longer exist
func (s *BillingService) recomputeIDsTx(ctx context.Context, tx store.Repositories, ids []uuid.UUID) ([]billChange, error) {
	seen := make(map[uuid.UUID]bool, len(ids))
	var changes []billChange

	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true

		bill, err := tx.Bills().Get(ctx, id)
		if models.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}

		change, err := s.recomputeTx(ctx, tx, bill)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// settlementDateTx returns the date of the latest payment of the bill
func (s *BillingService) settlementDateTx(ctx context.Context, tx store.Repositories, billID uuid.UUID, fallback time.Time) (time.Time, error) {
	payments, err := tx.Payments().ListByBill(ctx, billID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to list payments: %w", err)
	}
	if len(payments) == 0 {
		return fallback, nil
	}
	latest := payments[0].PaymentDate
	for _, p := range payments[1:] {
		if p.PaymentDate.After(latest) {
			latest = p.PaymentDate
		}
	}
	return latest, nil
}

// RecalculateBill re-derives the bill's amounts and status
func (s *BillingService) RecalculateBill(ctx context.Context, billID uuid.UUID) (*models.CreditCardBill, error) {
	var change billChange

	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		bill, err := tx.Bills().Get(ctx, billID)
		if err != nil {
			return err
		}
		change, err = s.recomputeTx(ctx, tx, bill)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, change.events(s.now())...)
	return change.bill, nil
}

// DeleteBillResult contains the outcome of a bill deletion
type DeleteBillResult struct {
	Bill                 *models.CreditCardBill `json:"bill"`
	UnlinkedPurchases    int64                  `json:"unlinked_purchases"`
	UnlinkedInstallments int64                  `json:"unlinked_installments"`
	Limit                models.LimitSnapshot   `json:"limit"`
}

// DeleteBill deletes a bill without payments. Its purchases and
// installments are kept but unlinked, and the card limit is recalculated,
// all in one transaction.
func (s *BillingService) DeleteBill(ctx context.Context, billID uuid.UUID) (*DeleteBillResult, error) {
	result := &DeleteBillResult{}

	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		bill, err := tx.Bills().Get(ctx, billID)
		if err != nil {
			return err
		}
		result.Bill = bill

		count, err := tx.Payments().CountByBill(ctx, billID)
		if err != nil {
			return err
		}
		if count > 0 {
			return &models.HasPaymentsError{BillID: billID, PaymentCount: count}
		}

		if result.UnlinkedPurchases, err = tx.Purchases().UnlinkBill(ctx, billID); err != nil {
			return err
		}
		if result.UnlinkedInstallments, err = tx.Installments().UnlinkBill(ctx, billID); err != nil {
			return err
		}

		if err := tx.Bills().Delete(ctx, billID); err != nil {
			return fmt.Errorf("failed to delete bill: %w", err)
		}

		result.Limit, err = s.limits.RecalculateTx(ctx, tx, bill.CardID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "bill deleted",
		logging.FieldBillID, billID,
		logging.FieldCardID, result.Bill.CardID,
		"unlinked_purchases", result.UnlinkedPurchases,
		"unlinked_installments", result.UnlinkedInstallments)

	now := s.now()
	s.publish(ctx,
		events.New(events.BillDeleted, result.Bill.CardID, billID, result, now),
		events.New(events.LimitRecalculated, result.Bill.CardID, result.Bill.CardID, result.Limit, now),
	)
	return result, nil
}

// StatusTransition describes one bill moved by a sweep
type StatusTransition struct {
	BillID uuid.UUID         `json:"bill_id"`
	CardID uuid.UUID         `json:"card_id"`
	From   models.BillStatus `json:"from"`
	To     models.BillStatus `json:"to"`
}

// SweepResult summarizes a status sweep
type SweepResult struct {
	Checked     int                    `json:"checked"`
	Transitions []StatusTransition     `json:"transitions"`
	Fees        []*FeeAssessmentResult `json:"fees"`
	Failed      int                    `json:"failed"`
}

// RefreshStatuses recomputes every bill that is not paid at now, moving
// bills to closed or overdue and assessing late charges on newly overdue
// ones. Each bill is handled in its own transaction; failures are collected
// and the sweep carries on.
func (s *BillingService) RefreshStatuses(ctx context.Context, now time.Time) (*SweepResult, error) {
	bills, err := s.store.Bills().ListUnsettled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsettled bills: %w", err)
	}

	result := &SweepResult{}
	var errs []error

	for _, listed := range bills {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result.Checked++

		var change billChange
		err := s.store.WithTx(ctx, func(tx store.Repositories) error {
			bill, err := tx.Bills().Get(ctx, listed.ID)
			if err != nil {
				return err
			}
			change, err = s.recomputeAtTx(ctx, tx, bill, now)
			return err
		})
		if models.IsNotFound(err) {
			continue
		}
		if err != nil {
			result.Failed++
			errs = append(errs, fmt.Errorf("bill %s: %w", listed.ID, err))
			s.logger.ErrorContext(ctx, "failed to refresh bill",
				logging.FieldBillID, listed.ID,
				logging.FieldError, err)
			continue
		}

		if change.statusChanged() {
			result.Transitions = append(result.Transitions, StatusTransition{
				BillID: change.bill.ID,
				CardID: change.bill.CardID,
				From:   change.previous,
				To:     change.bill.Status,
			})
		}
		if change.fees != nil {
			result.Fees = append(result.Fees, change.fees)
		}
		s.publish(ctx, change.events(now)...)
	}

	s.logger.InfoContext(ctx, "bill status sweep finished",
		"checked", result.Checked,
		"transitions", len(result.Transitions),
		"fees_assessed", len(result.Fees),
		"failed", result.Failed)

	return result, errors.Join(errs...)
}

// GetBill retrieves a bill by ID
func (s *BillingService) GetBill(ctx context.Context, billID uuid.UUID) (*models.CreditCardBill, error) {
	return s.store.Bills().Get(ctx, billID)
}

// ListBills returns the card's bills ordered by reference month
func (s *BillingService) ListBills(ctx context.Context, cardID uuid.UUID) ([]*models.CreditCardBill, error) {
	if _, err := s.store.Cards().Get(ctx, cardID); err != nil {
		return nil, err
	}
	bills, err := s.store.Bills().ListByCard(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	return bills, nil
}

// GetUpcomingBills returns the next n cycles of the card without creating
// bills for them
func (s *BillingService) GetUpcomingBills(ctx context.Context, cardID uuid.UUID, n int) ([]models.BillCycle, error) {
	card, err := s.store.Cards().Get(ctx, cardID)
	if err != nil {
		return nil, err
	}

	resolver := card.Resolver(s.loc)
	current := resolver.CurrentCycle(s.now())

	cycles := make([]models.BillCycle, 0, n)
	for i := 0; i < n; i++ {
		cycles = append(cycles, resolver.Shift(current, i))
	}
	return cycles, nil
}
