package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/models"
	"github.com/shopspring/decimal"
)

const purchaseColumns = `
	id, card_id, bill_id, category_id, description, merchant, purchase_date,
	amount, installments, installment_amount, is_installment,
	created_at, updated_at`

type purchaseRepo struct {
	q querier
}

func scanPurchase(row rowScanner) (*models.CreditCardPurchase, error) {
	p := &models.CreditCardPurchase{}
	err := row.Scan(
		&p.ID, &p.CardID, &p.BillID, &p.CategoryID, &p.Description, &p.Merchant, &p.PurchaseDate,
		&p.Amount, &p.Installments, &p.InstallmentAmount, &p.IsInstallment,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r purchaseRepo) Create(ctx context.Context, p *models.CreditCardPurchase) error {
	query := `
		INSERT INTO credit_card_purchases (` + purchaseColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err := r.q.ExecContext(ctx, query,
		p.ID, p.CardID, p.BillID, p.CategoryID, p.Description, p.Merchant, p.PurchaseDate,
		p.Amount, p.Installments, p.InstallmentAmount, p.IsInstallment,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", mapError(err))
	}
	return nil
}

func (r purchaseRepo) Get(ctx context.Context, id uuid.UUID) (*models.CreditCardPurchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM credit_card_purchases WHERE id = $1`

	p, err := scanPurchase(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(models.EntityPurchase, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return p, nil
}

func (r purchaseRepo) ListByCard(ctx context.Context, cardID uuid.UUID) ([]*models.CreditCardPurchase, error) {
	query := `
		SELECT ` + purchaseColumns + `
		FROM credit_card_purchases
		WHERE card_id = $1
		ORDER BY purchase_date, created_at
	`
	return r.list(ctx, query, cardID)
}

func (r purchaseRepo) ListByBill(ctx context.Context, billID uuid.UUID) ([]*models.CreditCardPurchase, error) {
	query := `
		SELECT ` + purchaseColumns + `
		FROM credit_card_purchases
		WHERE bill_id = $1
		ORDER BY purchase_date, created_at
	`
	return r.list(ctx, query, billID)
}

func (r purchaseRepo) list(ctx context.Context, query string, args ...any) ([]*models.CreditCardPurchase, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*models.CreditCardPurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func (r purchaseRepo) Update(ctx context.Context, p *models.CreditCardPurchase) error {
	query := `
		UPDATE credit_card_purchases
		SET card_id = $1, bill_id = $2, category_id = $3, description = $4,
		    merchant = $5, purchase_date = $6, amount = $7, installments = $8,
		    installment_amount = $9, is_installment = $10, updated_at = $11
		WHERE id = $12
	`

	err := execOne(ctx, r.q, models.NewNotFoundError(models.EntityPurchase, p.ID), query,
		p.CardID, p.BillID, p.CategoryID, p.Description,
		p.Merchant, p.PurchaseDate, p.Amount, p.Installments,
		p.InstallmentAmount, p.IsInstallment, p.UpdatedAt,
		p.ID,
	)
	if err != nil && !models.IsNotFound(err) {
		return fmt.Errorf("failed to update purchase: %w", err)
	}
	return err
}

func (r purchaseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, r.q, models.NewNotFoundError(models.EntityPurchase, id),
		`DELETE FROM credit_card_purchases WHERE id = $1`, id)
}

func (r purchaseRepo) SumByCard(ctx context.Context, cardID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM credit_card_purchases WHERE card_id = $1`,
		cardID,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum purchases: %w", err)
	}
	return sum, nil
}

func (r purchaseRepo) UnlinkBill(ctx context.Context, billID uuid.UUID) (int64, error) {
	result, err := r.q.ExecContext(ctx,
		`UPDATE credit_card_purchases SET bill_id = NULL WHERE bill_id = $1`, billID)
	if err != nil {
		return 0, fmt.Errorf("failed to unlink purchases: %w", err)
	}
	return result.RowsAffected()
}

const installmentColumns = `
	id, purchase_id, bill_id, installment_number, due_date, amount, is_paid, created_at`

type installmentRepo struct {
	q querier
}

func (r installmentRepo) CreateBatch(ctx context.Context, installments []*models.CreditCardInstallment) error {
	query := `
		INSERT INTO credit_card_installments (` + installmentColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, inst := range installments {
		_, err := r.q.ExecContext(ctx, query,
			inst.ID, inst.PurchaseID, inst.BillID, inst.InstallmentNumber,
			inst.DueDate, inst.Amount, inst.IsPaid, inst.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create installment %d: %w", inst.InstallmentNumber, mapError(err))
		}
	}
	return nil
}

func (r installmentRepo) ListByPurchase(ctx context.Context, purchaseID uuid.UUID) ([]*models.CreditCardInstallment, error) {
	query := `
		SELECT ` + installmentColumns + `
		FROM credit_card_installments
		WHERE purchase_id = $1
		ORDER BY installment_number
	`

	rows, err := r.q.QueryContext(ctx, query, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list installments: %w", err)
	}
	defer rows.Close()

	var installments []*models.CreditCardInstallment
	for rows.Next() {
		inst := &models.CreditCardInstallment{}
		if err := rows.Scan(
			&inst.ID, &inst.PurchaseID, &inst.BillID, &inst.InstallmentNumber,
			&inst.DueDate, &inst.Amount, &inst.IsPaid, &inst.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

func (r installmentRepo) DeleteByPurchase(ctx context.Context, purchaseID uuid.UUID) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM credit_card_installments WHERE purchase_id = $1`, purchaseID)
	if err != nil {
		return fmt.Errorf("failed to delete installments: %w", err)
	}
	return nil
}

func (r installmentRepo) UnlinkBill(ctx context.Context, billID uuid.UUID) (int64, error) {
	result, err := r.q.ExecContext(ctx,
		`UPDATE credit_card_installments SET bill_id = NULL WHERE bill_id = $1`, billID)
	if err != nil {
		return 0, fmt.Errorf("failed to unlink installments: %w", err)
	}
	return result.RowsAffected()
}
