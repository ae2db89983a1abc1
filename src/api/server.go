// Package api exposes the card services over HTTP with gin.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/livefire2015/ez-cards/src/logging"
	"github.com/livefire2015/ez-cards/src/services"
)

// Server holds the dependencies of the HTTP handlers
type Server struct {
	svc    *services.Services
	logger *slog.Logger
}

// NewServer builds the gin engine with every route registered. A nil logger
// discards request logs.
func NewServer(svc *services.Services, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{svc: svc, logger: logging.Component(logger, logging.ComponentHTTP)}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	v1 := r.Group("/v1")
	v1.Use(UserMiddleware())
	{
		v1.POST("/cards", s.createCard)
		v1.GET("/cards", s.listCards)
		v1.GET("/cards/summary", s.getCardSummary)
		v1.GET("/cards/:id", s.getCard)
		v1.PATCH("/cards/:id", s.updateCard)
		v1.DELETE("/cards/:id", s.deleteCard)
		v1.POST("/cards/:id/freeze", s.freezeCard)
		v1.POST("/cards/:id/unfreeze", s.unfreezeCard)
		v1.GET("/cards/:id/reconciliation", s.getReconciliation)
		v1.POST("/cards/:id/reconciliation", s.reconcileCard)

		v1.POST("/cards/:id/bills/current", s.getCurrentBill)
		v1.GET("/cards/:id/bills", s.listBills)
		v1.GET("/cards/:id/bills/upcoming", s.listUpcomingBills)
		v1.GET("/bills/:id", s.getBill)
		v1.DELETE("/bills/:id", s.deleteBill)
		v1.POST("/bills/:id/recalculate", s.recalculateBill)
		v1.POST("/bills/:id/waive-fees", s.waiveFees)

		v1.POST("/cards/:id/purchases", s.createPurchase)
		v1.GET("/cards/:id/purchases", s.listPurchases)
		v1.GET("/purchases/:id", s.getPurchase)
		v1.PATCH("/purchases/:id", s.updatePurchase)
		v1.DELETE("/purchases/:id", s.deletePurchase)

		v1.POST("/bills/:id/payments", s.createPayment)
		v1.GET("/bills/:id/payments", s.listPayments)
		v1.GET("/payments/:id", s.getPayment)
		v1.DELETE("/payments/:id", s.deletePayment)
	}

	return r
}
