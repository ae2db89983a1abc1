package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/models"
)

// Resources of other users are reported as missing rather than forbidden.

func (s *Server) ownedCard(c *gin.Context, cardID uuid.UUID) (*models.CreditCard, bool) {
	card, err := s.svc.Cards.GetCard(c.Request.Context(), cardID)
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	if card.UserID != currentUser(c) {
		s.respondError(c, models.NewNotFoundError(models.EntityCard, cardID))
		return nil, false
	}
	return card, true
}

func (s *Server) ownedBill(c *gin.Context, billID uuid.UUID) (*models.CreditCardBill, bool) {
	bill, err := s.svc.Bills.GetBill(c.Request.Context(), billID)
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	if !s.ownsCard(c, bill.CardID) {
		s.respondError(c, models.NewNotFoundError(models.EntityBill, billID))
		return nil, false
	}
	return bill, true
}

func (s *Server) ownedPurchase(c *gin.Context, purchaseID uuid.UUID) (*models.CreditCardPurchase, bool) {
	details, err := s.svc.Purchases.GetPurchase(c.Request.Context(), purchaseID)
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	if !s.ownsCard(c, details.Purchase.CardID) {
		s.respondError(c, models.NewNotFoundError(models.EntityPurchase, purchaseID))
		return nil, false
	}
	return details.Purchase, true
}

func (s *Server) ownedPayment(c *gin.Context, paymentID uuid.UUID) (*models.CreditCardPayment, bool) {
	payment, err := s.svc.Payments.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	bill, err := s.svc.Bills.GetBill(c.Request.Context(), payment.BillID)
	if err != nil && !models.IsNotFound(err) {
		s.respondError(c, err)
		return nil, false
	}
	if bill == nil || !s.ownsCard(c, bill.CardID) {
		s.respondError(c, models.NewNotFoundError(models.EntityPayment, paymentID))
		return nil, false
	}
	return payment, true
}

func (s *Server) ownsCard(c *gin.Context, cardID uuid.UUID) bool {
	card, err := s.svc.Cards.GetCard(c.Request.Context(), cardID)
	return err == nil && card.UserID == currentUser(c)
}
