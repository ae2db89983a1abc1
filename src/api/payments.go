package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/models"
	"github.com/livefire2015/ez-cards/src/services"
	"github.com/shopspring/decimal"
)

type createPaymentBody struct {
	Amount        decimal.Decimal      `json:"amount"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	PaymentDate   *Date                `json:"payment_date"`
	TransactionID *uuid.UUID           `json:"transaction_id"`
	Notes         string               `json:"notes"`
}

func (s *Server) createPayment(c *gin.Context) {
	billID, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedBill(c, billID); !ok {
		return
	}

	var body createPaymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := s.svc.Payments.CreatePayment(c.Request.Context(), services.CreatePaymentRequest{
		BillID:        billID,
		Amount:        body.Amount,
		PaymentMethod: body.PaymentMethod,
		PaymentDate:   body.PaymentDate.value(),
		TransactionID: body.TransactionID,
		Notes:         body.Notes,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) listPayments(c *gin.Context) {
	billID, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedBill(c, billID); !ok {
		return
	}

	payments, err := s.svc.Payments.ListPayments(c.Request.Context(), billID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (s *Server) getPayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	payment, ok := s.ownedPayment(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (s *Server) deletePayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedPayment(c, id); !ok {
		return
	}

	result, err := s.svc.Payments.DeletePayment(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
