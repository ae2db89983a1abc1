package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/events"
	"github.com/livefire2015/ez-cards/src/logging"
	"github.com/livefire2015/ez-cards/src/models"
	"github.com/livefire2015/ez-cards/src/store"
	"github.com/shopspring/decimal"
)

// PurchaseService books purchases to bills and keeps card limits current
type PurchaseService struct {
	base
	bills  *BillingService
	limits *LimitService
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(st store.Store, bills *BillingService, limits *LimitService, opts Options) *PurchaseService {
	return &PurchaseService{
		base:   newBase(st, opts, logging.ComponentPurchase),
		bills:  bills,
		limits: limits,
	}
}

// CreatePurchaseRequest contains the data needed to record a purchase
type CreatePurchaseRequest struct {
	CardID        uuid.UUID       `json:"card_id"`
	Description   string          `json:"description"`
	Merchant      string          `json:"merchant,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	PurchaseDate  time.Time       `json:"purchase_date"`
	Installments  int             `json:"installments"`
	IsInstallment bool            `json:"is_installment"`
	CategoryID    *uuid.UUID      `json:"category_id,omitempty"`
	Unbilled      bool            `json:"unbilled,omitempty"` // Record without attaching to a bill
}

// UpdatePurchaseRequest is a partial update; nil fields are left unchanged
type UpdatePurchaseRequest struct {
	CardID        *uuid.UUID       `json:"card_id,omitempty"`
	Description   *string          `json:"description,omitempty"`
	Merchant      *string          `json:"merchant,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	PurchaseDate  *time.Time       `json:"purchase_date,omitempty"`
	Installments  *int             `json:"installments,omitempty"`
	IsInstallment *bool            `json:"is_installment,omitempty"`
	CategoryID    *uuid.UUID       `json:"category_id,omitempty"`
}

// PurchaseResult contains a purchase together with everything it touched
type PurchaseResult struct {
	Purchase     *models.CreditCardPurchase      `json:"purchase"`
	Installments []*models.CreditCardInstallment `json:"installments,omitempty"`
	Bills        []*models.CreditCardBill        `json:"bills,omitempty"`
	Limit        models.LimitSnapshot            `json:"limit"`
}

// PurchaseDetails is a purchase with its installment schedule
type PurchaseDetails struct {
	Purchase     *models.CreditCardPurchase      `json:"purchase"`
	Installments []*models.CreditCardInstallment `json:"installments"`
}

// booking is the outcome of attaching a purchase to bills
type booking struct {
	installments []*models.CreditCardInstallment
	touched      []uuid.UUID
	created      []*models.CreditCardBill
}

// bookTx attaches p to the bill of the cycle containing its purchase date,
// or spreads its installments over consecutive cycles. Bills are created as
// needed. With unbilled set the purchase and its installments stay
// unlinked.
func (s *PurchaseService) bookTx(
	ctx context.Context,
	tx store.Repositories,
	card *models.CreditCard,
	p *models.CreditCardPurchase,
	unbilled bool,
) (booking, error) {
	var b booking
	now := s.now()
	resolver := card.Resolver(s.loc)

	p.BillID = nil
	installments, cycles := models.BuildInstallmentSchedule(p, resolver, now)
	b.installments = installments

	if unbilled {
		return b, nil
	}

	attach := func(cycle models.BillCycle) (*uuid.UUID, error) {
		bill, created, err := s.bills.getOrCreateTx(ctx, tx, card.ID, cycle)
		if err != nil {
			return nil, err
		}
		if created {
			b.created = append(b.created, bill)
		}
		b.touched = append(b.touched, bill.ID)
		id := bill.ID
		return &id, nil
	}

	if !p.IsSplit() {
		id, err := attach(resolver.CycleContaining(p.PurchaseDate))
		if err != nil {
			return b, err
		}
		p.BillID = id
		return b, nil
	}

	for i, cycle := range cycles {
		id, err := attach(cycle)
		if err != nil {
			return b, err
		}
		installments[i].BillID = id
		if i == 0 {
			p.BillID = id
		}
	}
	return b, nil
}

// CreatePurchase records a purchase, books it to its bill(s) and
// recalculates the card limit. The amount must fit in the available limit.
func (s *PurchaseService) CreatePurchase(ctx context.Context, req CreatePurchaseRequest) (*PurchaseResult, error) {
	now := s.now()

	purchase := &models.CreditCardPurchase{
		ID:            uuid.New(),
		CardID:        req.CardID,
		CategoryID:    req.CategoryID,
		Description:   strings.TrimSpace(req.Description),
		Merchant:      strings.TrimSpace(req.Merchant),
		PurchaseDate:  req.PurchaseDate,
		Amount:        req.Amount,
		Installments:  req.Installments,
		IsInstallment: req.IsInstallment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if purchase.PurchaseDate.IsZero() {
		purchase.PurchaseDate = now
	}
	if purchase.Installments == 0 {
		purchase.Installments = 1
	}
	if err := purchase.Validate(); err != nil {
		return nil, err
	}
	purchase.Normalize()

	var (
		result *PurchaseResult
		evs    []events.Event
	)

	err := s.bills.withBillRace(ctx, func(tx store.Repositories) error {
		evs = nil
		result = &PurchaseResult{Purchase: purchase}

		card, err := tx.Cards().Get(ctx, purchase.CardID)
		if err != nil {
			return err
		}
		if err := card.CanTransact(); err != nil {
			return err
		}
		if err := s.limits.ensureAvailableTx(ctx, tx, card, purchase.Amount); err != nil {
			return err
		}

		b, err := s.bookTx(ctx, tx, card, purchase, req.Unbilled)
		if err != nil {
			return err
		}

		if err := tx.Purchases().Create(ctx, purchase); err != nil {
			return fmt.Errorf("failed to create purchase: %w", err)
		}
		if len(b.installments) > 0 {
			if err := tx.Installments().CreateBatch(ctx, b.installments); err != nil {
				return fmt.Errorf("failed to create installments: %w", err)
			}
		}
		result.Installments = b.installments

		for _, bill := range b.created {
			evs = append(evs, events.New(events.BillCreated, bill.CardID, bill.ID, bill.Cycle(), now))
		}

		changes, err := s.bills.recomputeIDsTx(ctx, tx, b.touched)
		if err != nil {
			return err
		}
		for _, change := range changes {
			result.Bills = append(result.Bills, change.bill)
			evs = append(evs, change.events(now)...)
		}

		result.Limit, err = s.limits.RecalculateTx(ctx, tx, card.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "purchase created",
		logging.FieldPurchase, purchase.ID,
		logging.FieldCardID, purchase.CardID,
		logging.FieldAmount, purchase.Amount.StringFixed(2),
		"installments", purchase.Installments,
		"available_limit", result.Limit.AvailableLimit.StringFixed(2))

	evs = append(evs,
		events.New(events.PurchaseCreated, purchase.CardID, purchase.ID, purchase, now),
		events.New(events.LimitRecalculated, purchase.CardID, purchase.CardID, result.Limit, now),
	)
	s.publish(ctx, evs...)

	return result, nil
}

// UpdatePurchase applies a partial update. Only an increase of the amount is
// checked against the available limit; moving the purchase to another card
// checks the full amount there. The installment schedule is rebuilt when
// anything it depends on changes, and every touched bill and card is
// recalculated.
func (s *PurchaseService) UpdatePurchase(ctx context.Context, purchaseID uuid.UUID, req UpdatePurchaseRequest) (*PurchaseResult, error) {
	var (
		result *PurchaseResult
		evs    []events.Event
		limits []models.LimitSnapshot
	)
	now := s.now()

	err := s.bills.withBillRace(ctx, func(tx store.Repositories) error {
		evs = nil
		limits = nil

		purchase, err := tx.Purchases().Get(ctx, purchaseID)
		if err != nil {
			return err
		}
		old := *purchase

		applyPurchasePatch(purchase, req)
		if err := purchase.Validate(); err != nil {
			return err
		}
		purchase.Normalize()
		purchase.UpdatedAt = now

		card, err := tx.Cards().Get(ctx, purchase.CardID)
		if err != nil {
			return err
		}

		cardChanged := purchase.CardID != old.CardID
		if cardChanged {
			if err := card.CanTransact(); err != nil {
				return err
			}
			if err := s.limits.ensureAvailableTx(ctx, tx, card, purchase.Amount); err != nil {
				return err
			}
		} else if delta := purchase.Amount.Sub(old.Amount); delta.IsPositive() {
			if err := s.limits.ensureAvailableTx(ctx, tx, card, delta); err != nil {
				return err
			}
		}

		previous, err := tx.Installments().ListByPurchase(ctx, purchaseID)
		if err != nil {
			return fmt.Errorf("failed to list installments: %w", err)
		}

		// a purchase stays unbilled on rebuild only when neither it nor any
		// installment was linked; deleting one bill of a split purchase
		// unlinks just that installment
		touched := make([]uuid.UUID, 0, len(previous)+1)
		if old.BillID != nil {
			touched = append(touched, *old.BillID)
		}
		for _, inst := range previous {
			if inst.BillID != nil {
				touched = append(touched, *inst.BillID)
			}
		}
		unbilled := len(touched) == 0

		installments := previous
		rebuild := cardChanged ||
			!purchase.Amount.Equal(old.Amount) ||
			purchase.Installments != old.Installments ||
			purchase.IsInstallment != old.IsInstallment ||
			!purchase.PurchaseDate.Equal(old.PurchaseDate)

		if rebuild {
			b, err := s.bookTx(ctx, tx, card, purchase, unbilled)
			if err != nil {
				return err
			}
			for _, bill := range b.created {
				evs = append(evs, events.New(events.BillCreated, bill.CardID, bill.ID, bill.Cycle(), now))
			}
			touched = append(touched, b.touched...)
			installments = b.installments

			if err := tx.Installments().DeleteByPurchase(ctx, purchaseID); err != nil {
				return fmt.Errorf("failed to delete installments: %w", err)
			}
		}

		if err := tx.Purchases().Update(ctx, purchase); err != nil {
			return fmt.Errorf("failed to update purchase: %w", err)
		}
		if rebuild && len(installments) > 0 {
			if err := tx.Installments().CreateBatch(ctx, installments); err != nil {
				return fmt.Errorf("failed to create installments: %w", err)
			}
		}

		result = &PurchaseResult{Purchase: purchase, Installments: installments}

		changes, err := s.bills.recomputeIDsTx(ctx, tx, touched)
		if err != nil {
			return err
		}
		for _, change := range changes {
			result.Bills = append(result.Bills, change.bill)
			evs = append(evs, change.events(now)...)
		}

		result.Limit, err = s.limits.RecalculateTx(ctx, tx, purchase.CardID)
		if err != nil {
			return err
		}
		limits = append(limits, result.Limit)

		if cardChanged {
			snapshot, err := s.limits.RecalculateTx(ctx, tx, old.CardID)
			if err != nil {
				return err
			}
			limits = append(limits, snapshot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "purchase updated",
		logging.FieldPurchase, purchaseID,
		logging.FieldCardID, result.Purchase.CardID,
		logging.FieldAmount, result.Purchase.Amount.StringFixed(2))

	evs = append(evs, events.New(events.PurchaseUpdated, result.Purchase.CardID, purchaseID, result.Purchase, now))
	for _, snapshot := range limits {
		evs = append(evs, events.New(events.LimitRecalculated, snapshot.CardID, snapshot.CardID, snapshot, now))
	}
	s.publish(ctx, evs...)

	return result, nil
}

func applyPurchasePatch(p *models.CreditCardPurchase, req UpdatePurchaseRequest) {
	if req.CardID != nil {
		p.CardID = *req.CardID
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.Merchant != nil {
		p.Merchant = strings.TrimSpace(*req.Merchant)
	}
	if req.Amount != nil {
		p.Amount = *req.Amount
	}
	if req.PurchaseDate != nil {
		p.PurchaseDate = *req.PurchaseDate
	}
	if req.Installments != nil {
		p.Installments = *req.Installments
	}
	if req.IsInstallment != nil {
		p.IsInstallment = *req.IsInstallment
	}
	if req.CategoryID != nil {
		p.CategoryID = req.CategoryID
	}
}

// DeletePurchase removes a purchase and its installments, then recalculates
// its bills and the card limit
func (s *PurchaseService) DeletePurchase(ctx context.Context, purchaseID uuid.UUID) (*PurchaseResult, error) {
	var (
		result *PurchaseResult
		evs    []events.Event
	)
	now := s.now()

	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		evs = nil

		purchase, err := tx.Purchases().Get(ctx, purchaseID)
		if err != nil {
			return err
		}
		installments, err := tx.Installments().ListByPurchase(ctx, purchaseID)
		if err != nil {
			return fmt.Errorf("failed to list installments: %w", err)
		}

		var touched []uuid.UUID
		if purchase.BillID != nil {
			touched = append(touched, *purchase.BillID)
		}
		for _, inst := range installments {
			if inst.BillID != nil {
				touched = append(touched, *inst.BillID)
			}
		}

		if err := tx.Installments().DeleteByPurchase(ctx, purchaseID); err != nil {
			return fmt.Errorf("failed to delete installments: %w", err)
		}
		if err := tx.Purchases().Delete(ctx, purchaseID); err != nil {
			return fmt.Errorf("failed to delete purchase: %w", err)
		}

		result = &PurchaseResult{Purchase: purchase, Installments: installments}

		changes, err := s.bills.recomputeIDsTx(ctx, tx, touched)
		if err != nil {
			return err
		}
		for _, change := range changes {
			result.Bills = append(result.Bills, change.bill)
			evs = append(evs, change.events(now)...)
		}

		result.Limit, err = s.limits.RecalculateTx(ctx, tx, purchase.CardID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "purchase deleted",
		logging.FieldPurchase, purchaseID,
		logging.FieldCardID, result.Purchase.CardID,
		logging.FieldAmount, result.Purchase.Amount.StringFixed(2))

	cardID := result.Purchase.CardID
	evs = append(evs,
		events.New(events.PurchaseDeleted, cardID, purchaseID, result.Purchase, now),
		events.New(events.LimitRecalculated, cardID, cardID, result.Limit, now),
	)
	s.publish(ctx, evs...)

	return result, nil
}

// GetPurchase retrieves a purchase with its installments
func (s *PurchaseService) GetPurchase(ctx context.Context, purchaseID uuid.UUID) (*PurchaseDetails, error) {
	purchase, err := s.store.Purchases().Get(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	installments, err := s.store.Installments().ListByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list installments: %w", err)
	}
	return &PurchaseDetails{Purchase: purchase, Installments: installments}, nil
}

// ListPurchases returns the card's purchases ordered by purchase date
func (s *PurchaseService) ListPurchases(ctx context.Context, cardID uuid.UUID) ([]*models.CreditCardPurchase, error) {
	if _, err := s.store.Cards().Get(ctx, cardID); err != nil {
		return nil, err
	}
	purchases, err := s.store.Purchases().ListByCard(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	return purchases, nil
}
