package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/livefire2015/ez-cards/src/services"
)

const (
	defaultUpcomingBills = 3
	maxUpcomingBills     = 24
)

func (s *Server) createCard(c *gin.Context) {
	var req services.CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.UserID = currentUser(c)

	card, err := s.svc.Cards.CreateCard(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

func (s *Server) listCards(c *gin.Context) {
	cards, err := s.svc.Cards.ListCards(c.Request.Context(), currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": cards})
}

func (s *Server) getCardSummary(c *gin.Context) {
	summary, err := s.svc.Cards.GetCardSummary(c.Request.Context(), currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) getCard(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	card, ok := s.ownedCard(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, card)
}

func (s *Server) updateCard(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedCard(c, id); !ok {
		return
	}

	var req services.UpdateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	card, err := s.svc.Cards.UpdateCard(c.Request.Context(), id, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (s *Server) deleteCard(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedCard(c, id); !ok {
		return
	}

	if err := s.svc.Cards.DeleteCard(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) freezeCard(c *gin.Context) {
	s.setCardActive(c, false)
}

func (s *Server) unfreezeCard(c *gin.Context) {
	s.setCardActive(c, true)
}

func (s *Server) setCardActive(c *gin.Context, active bool) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedCard(c, id); !ok {
		return
	}

	update := s.svc.Cards.FreezeCard
	if active {
		update = s.svc.Cards.UnfreezeCard
	}
	card, err := update(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (s *Server) getReconciliation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedCard(c, id); !ok {
		return
	}

	report, err := s.svc.Reconcile.GenerateReconciliationReport(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) reconcileCard(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedCard(c, id); !ok {
		return
	}

	report, err := s.svc.Reconcile.Reconcile(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) listUpcomingBills(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedCard(c, id); !ok {
		return
	}

	n := defaultUpcomingBills
	if raw := c.Query("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxUpcomingBills {
			badRequest(c, "n must be between 1 and 24")
			return
		}
		n = parsed
	}

	cycles, err := s.svc.Bills.GetUpcomingBills(c.Request.Context(), id, n)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": cycles})
}
