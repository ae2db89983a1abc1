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

// ReconciliationService compares the stored derived amounts of a card and
// its bills with what the purchases and payments say, and repairs drift
type ReconciliationService struct {
	base
	bills  *BillingService
	limits *LimitService
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(st store.Store, bills *BillingService, limits *LimitService, opts Options) *ReconciliationService {
	return &ReconciliationService{
		base:   newBase(st, opts, logging.ComponentReconcile),
		bills:  bills,
		limits: limits,
	}
}

// BillDrift describes a bill whose stored amounts differ from its aggregates
type BillDrift struct {
	BillID            uuid.UUID       `json:"bill_id"`
	StoredTotal       decimal.Decimal `json:"stored_total"`
	ExpectedTotal     decimal.Decimal `json:"expected_total"`
	StoredPaid        decimal.Decimal `json:"stored_paid"`
	ExpectedPaid      decimal.Decimal `json:"expected_paid"`
	StoredRemaining   decimal.Decimal `json:"stored_remaining"`
	ExpectedRemaining decimal.Decimal `json:"expected_remaining"`
}

// ReconciliationReport shows the stored and expected state of one card
type ReconciliationReport struct {
	CardID            uuid.UUID            `json:"card_id"`
	StoredLimit       models.LimitSnapshot `json:"stored_limit"`
	ExpectedLimit     models.LimitSnapshot `json:"expected_limit"`
	BillDrift         []BillDrift          `json:"bill_drift,omitempty"`
	Repaired          bool                 `json:"repaired"`
	ReportGeneratedAt time.Time            `json:"report_generated_at"`
}

// LimitDrift reports whether the stored limit differs from the expected one
func (r *ReconciliationReport) LimitDrift() bool {
	return !r.StoredLimit.UsedLimit.Equal(r.ExpectedLimit.UsedLimit) ||
		!r.StoredLimit.AvailableLimit.Equal(r.ExpectedLimit.AvailableLimit)
}

// InSync reports whether nothing drifted
func (r *ReconciliationReport) InSync() bool {
	return !r.LimitDrift() && len(r.BillDrift) == 0
}

// GenerateReconciliationReport compares the card without changing anything
func (s *ReconciliationService) GenerateReconciliationReport(ctx context.Context, cardID uuid.UUID) (*ReconciliationReport, error) {
	var report *ReconciliationReport
	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		var err error
		report, err = s.reportTx(ctx, tx, cardID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate reconciliation report: %w", err)
	}
	return report, nil
}

// Reconcile reports on the card and, when anything drifted, recalculates the
// limit and every drifted bill in the same transaction
func (s *ReconciliationService) Reconcile(ctx context.Context, cardID uuid.UUID) (*ReconciliationReport, error) {
	var (
		report *ReconciliationReport
		evs    []events.Event
	)
	now := s.now()

	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		evs = nil

		var err error
		report, err = s.reportTx(ctx, tx, cardID)
		if err != nil {
			return err
		}
		if report.InSync() {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(report.BillDrift))
		for _, d := range report.BillDrift {
			ids = append(ids, d.BillID)
		}
		changes, err := s.bills.recomputeIDsTx(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, change := range changes {
			evs = append(evs, change.events(now)...)
		}

		if report.LimitDrift() {
			snapshot, err := s.limits.RecalculateTx(ctx, tx, cardID)
			if err != nil {
				return err
			}
			evs = append(evs, events.New(events.LimitRecalculated, cardID, cardID, snapshot, now))
		}

		report.Repaired = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile card: %w", err)
	}

	if report.Repaired {
		s.logger.WarnContext(ctx, "card drift repaired",
			logging.FieldCardID, cardID,
			"limit_drift", report.LimitDrift(),
			"drifted_bills", len(report.BillDrift))
	}
	s.publish(ctx, evs...)

	return report, nil
}

func (s *ReconciliationService) reportTx(ctx context.Context, tx store.Repositories, cardID uuid.UUID) (*ReconciliationReport, error) {
	card, err := tx.Cards().Get(ctx, cardID)
	if err != nil {
		return nil, err
	}

	expected, err := s.limits.snapshotTx(ctx, tx, cardID)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		CardID: cardID,
		StoredLimit: models.LimitSnapshot{
			CardID:         cardID,
			TotalLimit:     card.TotalLimit,
			UsedLimit:      card.UsedLimit,
			AvailableLimit: card.AvailableLimit,
		},
		ExpectedLimit:     expected,
		ReportGeneratedAt: s.now(),
	}

	bills, err := tx.Bills().ListByCard(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}

	for _, bill := range bills {
		totals, err := tx.Bills().Totals(ctx, bill.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to compute bill totals: %w", err)
		}

		want := *bill
		want.ApplyTotals(totals, s.policy)

		if want.TotalAmount.Equal(bill.TotalAmount) &&
			want.PaidAmount.Equal(bill.PaidAmount) &&
			want.RemainingAmount.Equal(bill.RemainingAmount) {
			continue
		}

		report.BillDrift = append(report.BillDrift, BillDrift{
			BillID:            bill.ID,
			StoredTotal:       bill.TotalAmount,
			ExpectedTotal:     want.TotalAmount,
			StoredPaid:        bill.PaidAmount,
			ExpectedPaid:      want.PaidAmount,
			StoredRemaining:   bill.RemainingAmount,
			ExpectedRemaining: want.RemainingAmount,
		})
	}

	return report, nil
}
