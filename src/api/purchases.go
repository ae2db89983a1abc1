package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/services"
	"github.com/shopspring/decimal"
)

type createPurchaseBody struct {
	Description   string          `json:"description"`
	Merchant      string          `json:"merchant"`
	Amount        decimal.Decimal `json:"amount"`
	PurchaseDate  *Date           `json:"purchase_date"`
	Installments  int             `json:"installments"`
	IsInstallment bool            `json:"is_installment"`
	CategoryID    *uuid.UUID      `json:"category_id"`
	Unbilled      bool            `json:"unbilled"`
}

type updatePurchaseBody struct {
	CardID        *uuid.UUID       `json:"card_id"`
	Description   *string          `json:"description"`
	Merchant      *string          `json:"merchant"`
	Amount        *decimal.Decimal `json:"amount"`
	PurchaseDate  *Date            `json:"purchase_date"`
	Installments  *int             `json:"installments"`
	IsInstallment *bool            `json:"is_installment"`
	CategoryID    *uuid.UUID       `json:"category_id"`
}

func (b updatePurchaseBody) request() services.UpdatePurchaseRequest {
	req := services.UpdatePurchaseRequest{
		CardID:        b.CardID,
		Description:   b.Description,
		Merchant:      b.Merchant,
		Amount:        b.Amount,
		Installments:  b.Installments,
		IsInstallment: b.IsInstallment,
		CategoryID:    b.CategoryID,
	}
	if b.PurchaseDate != nil {
		date := b.PurchaseDate.value()
		req.PurchaseDate = &date
	}
	return req
}

func (s *Server) createPurchase(c *gin.Context) {
	cardID, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedCard(c, cardID); !ok {
		return
	}

	var body createPurchaseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := s.svc.Purchases.CreatePurchase(c.Request.Context(), services.CreatePurchaseRequest{
		CardID:        cardID,
		Description:   body.Description,
		Merchant:      body.Merchant,
		Amount:        body.Amount,
		PurchaseDate:  body.PurchaseDate.value(),
		Installments:  body.Installments,
		IsInstallment: body.IsInstallment,
		CategoryID:    body.CategoryID,
		Unbilled:      body.Unbilled,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) listPurchases(c *gin.Context) {
	cardID, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedCard(c, cardID); !ok {
		return
	}

	purchases, err := s.svc.Purchases.ListPurchases(c.Request.Context(), cardID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

func (s *Server) getPurchase(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedPurchase(c, id); !ok {
		return
	}

	details, err := s.svc.Purchases.GetPurchase(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (s *Server) updatePurchase(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedPurchase(c, id); !ok {
		return
	}

	var body updatePurchaseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	if body.CardID != nil {
		if _, ok := s.ownedCard(c, *body.CardID); !ok {
			return
		}
	}

	result, err := s.svc.Purchases.UpdatePurchase(c.Request.Context(), id, body.request())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) deletePurchase(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedPurchase(c, id); !ok {
		return
	}

	result, err := s.svc.Purchases.DeletePurchase(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
