package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/models"
)

const billColumns = `
	id, card_id, reference_month, reference_year,
	opening_date, closing_date, due_date, status,
	total_amount, paid_amount, remaining_amount, minimum_payment,
	interest_amount, late_fee, payment_date, fees_assessed_at, notes,
	created_at, updated_at`

type billRepo struct {
	q querier
}

func scanBill(row rowScanner) (*models.CreditCardBill, error) {
	bill := &models.CreditCardBill{}
	err := row.Scan(
		&bill.ID, &bill.CardID, &bill.ReferenceMonth, &bill.ReferenceYear,
		&bill.OpeningDate, &bill.ClosingDate, &bill.DueDate, &bill.Status,
		&bill.TotalAmount, &bill.PaidAmount, &bill.RemainingAmount, &bill.MinimumPayment,
		&bill.InterestAmount, &bill.LateFee, &bill.PaymentDate, &bill.FeesAssessedAt, &bill.Notes,
		&bill.CreatedAt, &bill.UpdatedAt,
	)
	return bill, err
}

func (r billRepo) Create(ctx context.Context, bill *models.CreditCardBill) error {
	query := `
		INSERT INTO credit_card_bills (` + billColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
	`

	_, err := r.q.ExecContext(ctx, query,
		bill.ID, bill.CardID, bill.ReferenceMonth, bill.ReferenceYear,
		bill.OpeningDate, bill.ClosingDate, bill.DueDate, bill.Status,
		bill.TotalAmount, bill.PaidAmount, bill.RemainingAmount, bill.MinimumPayment,
		bill.InterestAmount, bill.LateFee, bill.PaymentDate, bill.FeesAssessedAt, bill.Notes,
		bill.CreatedAt, bill.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bill: %w", mapError(err))
	}
	return nil
}

func (r billRepo) Get(ctx context.Context, id uuid.UUID) (*models.CreditCardBill, error) {
	query := `SELECT ` + billColumns + ` FROM credit_card_bills WHERE id = $1`

	bill, err := scanBill(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(models.EntityBill, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	return bill, nil
}

func (r billRepo) GetByReference(ctx context.Context, cardID uuid.UUID, month, year int) (*models.CreditCardBill, error) {
	query := `
		SELECT ` + billColumns + `
		FROM credit_card_bills
		WHERE card_id = $1 AND reference_month = $2 AND reference_year = $3
	`

	bill, err := scanBill(r.q.QueryRowContext(ctx, query, cardID, month, year))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(models.EntityBill, uuid.Nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill by reference: %w", err)
	}
	return bill, nil
}

func (r billRepo) ListByCard(ctx context.Context, cardID uuid.UUID) ([]*models.CreditCardBill, error) {
	query := `
		SELECT ` + billColumns + `
		FROM credit_card_bills
		WHERE card_id = $1
		ORDER BY reference_year, reference_month
	`
	return r.list(ctx, query, cardID)
}

func (r billRepo) ListUnsettled(ctx context.Context) ([]*models.CreditCardBill, error) {
	query := `
		SELECT ` + billColumns + `
		FROM credit_card_bills
		WHERE status <> 'paid'
		ORDER BY reference_year, reference_month, card_id
	`
	return r.list(ctx, query)
}

func (r billRepo) list(ctx context.Context, query string, args ...any) ([]*models.CreditCardBill, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var bills []*models.CreditCardBill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}

func (r billRepo) Update(ctx context.Context, bill *models.CreditCardBill) error {
	query := `
		UPDATE credit_card_bills
		SET status = $1, total_amount = $2, paid_amount = $3, remaining_amount = $4,
		    minimum_payment = $5, interest_amount = $6, late_fee = $7,
		    payment_date = $8, fees_assessed_at = $9, notes = $10, updated_at = $11
		WHERE id = $12
	`

	err := execOne(ctx, r.q, models.NewNotFoundError(models.EntityBill, bill.ID), query,
		bill.Status, bill.TotalAmount, bill.PaidAmount, bill.RemainingAmount,
		bill.MinimumPayment, bill.InterestAmount, bill.LateFee,
		bill.PaymentDate, bill.FeesAssessedAt, bill.Notes, bill.UpdatedAt,
		bill.ID,
	)
	if err != nil && !models.IsNotFound(err) {
		return fmt.Errorf("failed to update bill: %w", err)
	}
	return err
}

// Delete relies on ON DELETE SET NULL for purchases and installments;
// payments restrict the delete and surface as store.ErrReferenced
func (r billRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, r.q, models.NewNotFoundError(models.EntityBill, id),
		`DELETE FROM credit_card_bills WHERE id = $1`, id)
}

func (r billRepo) Totals(ctx context.Context, id uuid.UUID) (models.BillTotals, error) {
	query := `
		SELECT
			COALESCE((
				SELECT SUM(p.amount) FROM credit_card_purchases p
				WHERE p.bill_id = b.id AND NOT (p.is_installment AND p.installments > 1)
			), 0) + COALESCE((
				SELECT SUM(i.amount) FROM credit_card_installments i
				WHERE i.bill_id = b.id
			), 0),
			COALESCE((
				SELECT SUM(pm.amount) FROM credit_card_payments pm
				WHERE pm.bill_id = b.id
			), 0)
		FROM credit_card_bills b
		WHERE b.id = $1
	`

	var totals models.BillTotals
	err := r.q.QueryRowContext(ctx, query, id).Scan(&totals.Charges, &totals.Payments)
	if errors.Is(err, sql.ErrNoRows) {
		return totals, models.NewNotFoundError(models.EntityBill, id)
	}
	if err != nil {
		return totals, fmt.Errorf("failed to compute bill totals: %w", err)
	}
	return totals, nil
}
