package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/models"
)

const paymentColumns = `
	id, bill_id, transaction_id, amount, payment_date, payment_method, notes, created_at`

type paymentRepo struct {
	q querier
}

func scanPayment(row rowScanner) (*models.CreditCardPayment, error) {
	p := &models.CreditCardPayment{}
	err := row.Scan(
		&p.ID, &p.BillID, &p.TransactionID, &p.Amount,
		&p.PaymentDate, &p.PaymentMethod, &p.Notes, &p.CreatedAt,
	)
	return p, err
}

func (r paymentRepo) Create(ctx context.Context, p *models.CreditCardPayment) error {
	query := `
		INSERT INTO credit_card_payments (` + paymentColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		p.ID, p.BillID, p.TransactionID, p.Amount,
		p.PaymentDate, p.PaymentMethod, p.Notes, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", mapError(err))
	}
	return nil
}

func (r paymentRepo) Get(ctx context.Context, id uuid.UUID) (*models.CreditCardPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM credit_card_payments WHERE id = $1`

	p, err := scanPayment(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(models.EntityPayment, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func (r paymentRepo) ListByBill(ctx context.Context, billID uuid.UUID) ([]*models.CreditCardPayment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM credit_card_payments
		WHERE bill_id = $1
		ORDER BY payment_date, created_at
	`

	rows, err := r.q.QueryContext(ctx, query, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.CreditCardPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r paymentRepo) CountByBill(ctx context.Context, billID uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credit_card_payments WHERE bill_id = $1`, billID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return n, nil
}

func (r paymentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, r.q, models.NewNotFoundError(models.EntityPayment, id),
		`DELETE FROM credit_card_payments WHERE id = $1`, id)
}
