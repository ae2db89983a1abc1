package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/models"
	"github.com/livefire2015/ez-cards/src/store"
)

const cardColumns = `
	id, user_id, name, brand, last_four_digits, color,
	total_limit, used_limit, available_limit,
	closing_day, due_day, interest_rate, annual_fee,
	is_active, created_at, updated_at`

type cardRepo struct {
	q querier
}

func scanCard(row rowScanner) (*models.CreditCard, error) {
	card := &models.CreditCard{}
	err := row.Scan(
		&card.ID, &card.UserID, &card.Name, &card.Brand, &card.LastFourDigits, &card.Color,
		&card.TotalLimit, &card.UsedLimit, &card.AvailableLimit,
		&card.ClosingDay, &card.DueDay, &card.InterestRate, &card.AnnualFee,
		&card.IsActive, &card.CreatedAt, &card.UpdatedAt,
	)
	return card, err
}

func (r cardRepo) Create(ctx context.Context, card *models.CreditCard) error {
	query := `
		INSERT INTO credit_cards (` + cardColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`

	_, err := r.q.ExecContext(ctx, query,
		card.ID, card.UserID, card.Name, card.Brand, card.LastFourDigits, card.Color,
		card.TotalLimit, card.UsedLimit, card.AvailableLimit,
		card.ClosingDay, card.DueDay, card.InterestRate, card.AnnualFee,
		card.IsActive, card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create credit card: %w", mapError(err))
	}
	return nil
}

func (r cardRepo) Get(ctx context.Context, id uuid.UUID) (*models.CreditCard, error) {
	query := `SELECT ` + cardColumns + ` FROM credit_cards WHERE id = $1`

	card, err := scanCard(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(models.EntityCard, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credit card: %w", err)
	}
	return card, nil
}

func (r cardRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.CreditCard, error) {
	query := `SELECT ` + cardColumns + ` FROM credit_cards WHERE user_id = $1 ORDER BY created_at, name`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit cards: %w", err)
	}
	defer rows.Close()

	var cards []*models.CreditCard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credit card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func (r cardRepo) Update(ctx context.Context, card *models.CreditCard) error {
	query := `
		UPDATE credit_cards
		SET name = $1, brand = $2, last_four_digits = $3, color = $4,
		    total_limit = $5, closing_day = $6, due_day = $7,
		    interest_rate = $8, annual_fee = $9, is_active = $10, updated_at = $11
		WHERE id = $12
	`

	err := execOne(ctx, r.q, models.NewNotFoundError(models.EntityCard, card.ID), query,
		card.Name, card.Brand, card.LastFourDigits, card.Color,
		card.TotalLimit, card.ClosingDay, card.DueDay,
		card.InterestRate, card.AnnualFee, card.IsActive, card.UpdatedAt,
		card.ID,
	)
	if err != nil && !models.IsNotFound(err) {
		return fmt.Errorf("failed to update credit card: %w", err)
	}
	return err
}

func (r cardRepo) UpdateLimit(ctx context.Context, snapshot models.LimitSnapshot, updatedAt time.Time) error {
	query := `UPDATE credit_cards SET used_limit = $1, available_limit = $2, updated_at = $3 WHERE id = $4`

	err := execOne(ctx, r.q, models.NewNotFoundError(models.EntityCard, snapshot.CardID), query,
		snapshot.UsedLimit, snapshot.AvailableLimit, updatedAt, snapshot.CardID,
	)
	if err != nil && !models.IsNotFound(err) {
		return fmt.Errorf("failed to update credit card limit: %w", err)
	}
	return err
}

// Delete relies on ON DELETE CASCADE for bills, purchases and installments;
// payments restrict the cascade and surface as store.ErrReferenced
func (r cardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	err := execOne(ctx, r.q, models.NewNotFoundError(models.EntityCard, id),
		`DELETE FROM credit_cards WHERE id = $1`, id)
	if err != nil && !models.IsNotFound(err) {
		if errors.Is(err, store.ErrReferenced) {
			return err
		}
		return fmt.Errorf("failed to delete credit card: %w", err)
	}
	return err
}
