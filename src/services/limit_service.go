package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/events"
	"github.com/livefire2015/ez-cards/src/logging"
	"github.com/livefire2015/ez-cards/src/models"
	"github.com/livefire2015/ez-cards/src/store"
	"github.com/shopspring/decimal"
)

// LimitService is the only writer of a card's used and available limit
type LimitService struct {
	base
}

// NewLimitService creates a new limit service
func NewLimitService(st store.Store, opts Options) *LimitService {
	return &LimitService{base: newBase(st, opts, logging.ComponentLimits)}
}

// Recalculate re-derives the card's limit snapshot in its own transaction
func (s *LimitService) Recalculate(ctx context.Context, cardID uuid.UUID) (models.LimitSnapshot, error) {
	var snapshot models.LimitSnapshot
	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		var err error
		snapshot, err = s.RecalculateTx(ctx, tx, cardID)
		return err
	})
	if err != nil {
		return models.LimitSnapshot{}, err
	}

	s.publish(ctx, events.New(events.LimitRecalculated, cardID, cardID, snapshot, s.now()))
	return snapshot, nil
}

// RecalculateTx sums every purchase of the card, unlinked ones included,
// and stores used = sum and available = max(0, total - used)
func (s *LimitService) RecalculateTx(ctx context.Context, tx store.Repositories, cardID uuid.UUID) (models.LimitSnapshot, error) {
	snapshot, err := s.snapshotTx(ctx, tx, cardID)
	if err != nil {
		return models.LimitSnapshot{}, err
	}

	if err := tx.Cards().UpdateLimit(ctx, snapshot, s.now()); err != nil {
		return models.LimitSnapshot{}, fmt.Errorf("failed to store limit: %w", err)
	}

	s.logger.DebugContext(ctx, "limit recalculated",
		logging.FieldCardID, cardID,
		"used_limit", snapshot.UsedLimit.StringFixed(2),
		"available_limit", snapshot.AvailableLimit.StringFixed(2))

	return snapshot, nil
}

// snapshotTx computes the limit without storing it
func (s *LimitService) snapshotTx(ctx context.Context, tx store.Repositories, cardID uuid.UUID) (models.LimitSnapshot, error) {
	card, err := tx.Cards().Get(ctx, cardID)
	if err != nil {
		return models.LimitSnapshot{}, err
	}

	used, err := tx.Purchases().SumByCard(ctx, cardID)
	if err != nil {
		return models.LimitSnapshot{}, fmt.Errorf("failed to sum purchases: %w", err)
	}

	return models.ComputeLimitSnapshot(card.ID, card.TotalLimit, used), nil
}

// ensureAvailableTx fails with InsufficientLimitError when amount does not
// fit in the card's freshly computed available limit
func (s *LimitService) ensureAvailableTx(ctx context.Context, tx store.Repositories, card *models.CreditCard, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}

	snapshot, err := s.snapshotTx(ctx, tx, card.ID)
	if err != nil {
		return err
	}
	card.ApplyLimit(snapshot)

	return card.HasAvailableLimit(amount)
}
