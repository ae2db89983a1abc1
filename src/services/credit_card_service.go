package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/events"
	"github.com/livefire2015/ez-cards/src/logging"
	"github.com/livefire2015/ez-cards/src/models"
	"github.com/livefire2015/ez-cards/src/store"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// summaryConcurrency bounds the per-card reads of GetCardSummary
const summaryConcurrency = 8

// CardService handles credit card registration, configuration and the
// cross-card summary
type CardService struct {
	base
	limits *LimitService
}

// NewCardService creates a new card service
func NewCardService(st store.Store, limits *LimitService, opts Options) *CardService {
	return &CardService{
		base:   newBase(st, opts, logging.ComponentCards),
		limits: limits,
	}
}

// CreateCardRequest contains parameters for creating a new credit card
type CreateCardRequest struct {
	UserID         uuid.UUID        `json:"user_id"`
	Name           string           `json:"name"`
	Brand          models.CardBrand `json:"brand"`
	LastFourDigits string           `json:"last_four_digits,omitempty"`
	Color          string           `json:"color,omitempty"`
	TotalLimit     decimal.Decimal  `json:"total_limit"`
	ClosingDay     int              `json:"closing_day"`
	DueDay         int              `json:"due_day"`
	InterestRate   decimal.Decimal  `json:"interest_rate"`
	AnnualFee      decimal.Decimal  `json:"annual_fee"`
	IsActive       *bool            `json:"is_active,omitempty"`
}

// UpdateCardRequest is a partial update; nil fields are left unchanged.
// Changing the cycle days does not move the dates of existing bills.
type UpdateCardRequest struct {
	Name           *string           `json:"name,omitempty"`
	Brand          *models.CardBrand `json:"brand,omitempty"`
	LastFourDigits *string           `json:"last_four_digits,omitempty"`
	Color          *string           `json:"color,omitempty"`
	TotalLimit     *decimal.Decimal  `json:"total_limit,omitempty"`
	ClosingDay     *int              `json:"closing_day,omitempty"`
	DueDay         *int              `json:"due_day,omitempty"`
	InterestRate   *decimal.Decimal  `json:"interest_rate,omitempty"`
	AnnualFee      *decimal.Decimal  `json:"annual_fee,omitempty"`
	IsActive       *bool             `json:"is_active,omitempty"`
}

// CreateCard creates a new credit card with its whole limit available
func (s *CardService) CreateCard(ctx context.Context, req CreateCardRequest) (*models.CreditCard, error) {
	now := s.now()

	// Get defaults and apply request values
	card := models.CreditCardDefaults()
	card.ID = uuid.New()
	card.UserID = req.UserID
	card.Name = strings.TrimSpace(req.Name)
	card.LastFourDigits = strings.TrimSpace(req.LastFourDigits)
	card.Color = req.Color
	card.TotalLimit = models.RoundMoney(req.TotalLimit)
	card.ClosingDay = req.ClosingDay
	card.DueDay = req.DueDay
	card.InterestRate = req.InterestRate
	card.AnnualFee = req.AnnualFee
	if req.Brand != "" {
		card.Brand = req.Brand
	}
	if req.IsActive != nil {
		card.IsActive = *req.IsActive
	}
	card.ApplyLimit(models.ComputeLimitSnapshot(card.ID, card.TotalLimit, decimal.Zero))
	card.CreatedAt = now
	card.UpdatedAt = now

	if err := card.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.Cards().Create(ctx, &card); err != nil {
		return nil, fmt.Errorf("failed to create credit card: %w", err)
	}

	s.logger.InfoContext(ctx, "card created",
		logging.FieldCardID, card.ID,
		logging.FieldUserID, card.UserID,
		"total_limit", card.TotalLimit.StringFixed(2),
		"closing_day", card.ClosingDay,
		"due_day", card.DueDay)

	s.publish(ctx, events.New(events.CardCreated, card.ID, card.ID, card, now))
	return &card, nil
}

// UpdateCard applies a partial update and recalculates the limit when the
// total limit changed
func (s *CardService) UpdateCard(ctx context.Context, cardID uuid.UUID, req UpdateCardRequest) (*models.CreditCard, error) {
	var (
		card         *models.CreditCard
		limitChanged bool
	)
	now := s.now()

	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		var err error
		card, err = tx.Cards().Get(ctx, cardID)
		if err != nil {
			return err
		}

		previousLimit := card.TotalLimit
		applyCardPatch(card, req)
		card.UpdatedAt = now

		if err := card.Validate(); err != nil {
			return err
		}
		if err := tx.Cards().Update(ctx, card); err != nil {
			return fmt.Errorf("failed to update credit card: %w", err)
		}

		limitChanged = !card.TotalLimit.Equal(previousLimit)
		if !limitChanged {
			return nil
		}

		snapshot, err := s.limits.RecalculateTx(ctx, tx, cardID)
		if err != nil {
			return err
		}
		card.ApplyLimit(snapshot)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "card updated",
		logging.FieldCardID, cardID,
		"limit_changed", limitChanged)

	evs := []events.Event{events.New(events.CardUpdated, cardID, cardID, card, now)}
	if limitChanged {
		snapshot := models.LimitSnapshot{
			CardID:         cardID,
			TotalLimit:     card.TotalLimit,
			UsedLimit:      card.UsedLimit,
			AvailableLimit: card.AvailableLimit,
		}
		evs = append(evs, events.New(events.LimitRecalculated, cardID, cardID, snapshot, now))
	}
	s.publish(ctx, evs...)

	return card, nil
}

func applyCardPatch(card *models.CreditCard, req UpdateCardRequest) {
	if req.Name != nil {
		card.Name = strings.TrimSpace(*req.Name)
	}
	if req.Brand != nil {
		card.Brand = *req.Brand
	}
	if req.LastFourDigits != nil {
		card.LastFourDigits = strings.TrimSpace(*req.LastFourDigits)
	}
	if req.Color != nil {
		card.Color = *req.Color
	}
	if req.TotalLimit != nil {
		card.TotalLimit = models.RoundMoney(*req.TotalLimit)
	}
	if req.ClosingDay != nil {
		card.ClosingDay = *req.ClosingDay
	}
	if req.DueDay != nil {
		card.DueDay = *req.DueDay
	}
	if req.InterestRate != nil {
		card.InterestRate = *req.InterestRate
	}
	if req.AnnualFee != nil {
		card.AnnualFee = *req.AnnualFee
	}
	if req.IsActive != nil {
		card.IsActive = *req.IsActive
	}
}

// FreezeCard blocks new purchases on the card
func (s *CardService) FreezeCard(ctx context.Context, cardID uuid.UUID) (*models.CreditCard, error) {
	active := false
	return s.UpdateCard(ctx, cardID, UpdateCardRequest{IsActive: &active})
}

// UnfreezeCard allows purchases on the card again
func (s *CardService) UnfreezeCard(ctx context.Context, cardID uuid.UUID) (*models.CreditCard, error) {
	active := true
	return s.UpdateCard(ctx, cardID, UpdateCardRequest{IsActive: &active})
}

// DeleteCard removes a card with its bills, purchases and installments.
// Cards with any paid-into bill cannot be deleted.
func (s *CardService) DeleteCard(ctx context.Context, cardID uuid.UUID) error {
	var card *models.CreditCard

	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		var err error
		card, err = tx.Cards().Get(ctx, cardID)
		if err != nil {
			return err
		}

		bills, err := tx.Bills().ListByCard(ctx, cardID)
		if err != nil {
			return fmt.Errorf("failed to list bills: %w", err)
		}
		for _, bill := range bills {
			count, err := tx.Payments().CountByBill(ctx, bill.ID)
			if err != nil {
				return err
			}
			if count > 0 {
				return &models.HasPaymentsError{BillID: bill.ID, PaymentCount: count}
			}
		}

		if err := tx.Cards().Delete(ctx, cardID); err != nil {
			return fmt.Errorf("failed to delete credit card: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "card deleted",
		logging.FieldCardID, cardID,
		logging.FieldUserID, card.UserID)

	s.publish(ctx, events.New(events.CardDeleted, cardID, cardID, card, s.now()))
	return nil
}

// GetCard retrieves a credit card by ID
func (s *CardService) GetCard(ctx context.Context, cardID uuid.UUID) (*models.CreditCard, error) {
	return s.store.Cards().Get(ctx, cardID)
}

// ListCards returns the cards of a user
func (s *CardService) ListCards(ctx context.Context, userID uuid.UUID) ([]*models.CreditCard, error) {
	cards, err := s.store.Cards().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit cards: %w", err)
	}
	return cards, nil
}

// GetCardSummary aggregates limits and unpaid bills over every card of the
// user. Bill statuses are resolved at the current time, so bills not yet
// touched by a sweep still count as overdue once their due date passed.
func (s *CardService) GetCardSummary(ctx context.Context, userID uuid.UUID) (*models.CardSummary, error) {
	cards, err := s.ListCards(ctx, userID)
	if err != nil {
		return nil, err
	}

	perCard := make([][]*models.CreditCardBill, len(cards))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i, card := range cards {
		g.Go(func() error {
			bills, err := s.store.Bills().ListByCard(gctx, card.ID)
			if err != nil {
				return fmt.Errorf("failed to list bills of card %s: %w", card.ID, err)
			}
			perCard[i] = bills
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now()
	summary := models.NewCardSummary()
	for i, card := range cards {
		summary.AddCard(card)
		for _, bill := range perCard[i] {
			bill.Status = bill.ResolveStatus(now)
			summary.AddBill(bill)
		}
	}

	s.logger.DebugContext(ctx, "card summary computed",
		logging.FieldUserID, userID,
		"cards", summary.CardCount,
		"overdue_bills", summary.OverdueBillCount)

	return &summary, nil
}
