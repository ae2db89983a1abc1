package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) getCurrentBill(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedCard(c, id); !ok {
		return
	}

	bill, err := s.svc.Bills.GetCurrentOrCreateBill(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

func (s *Server) listBills(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedCard(c, id); !ok {
		return
	}

	bills, err := s.svc.Bills.ListBills(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bills": bills})
}

func (s *Server) getBill(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	bill, ok := s.ownedBill(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, bill)
}

func (s *Server) deleteBill(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedBill(c, id); !ok {
		return
	}

	result, err := s.svc.Bills.DeleteBill(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) recalculateBill(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedBill(c, id); !ok {
		return
	}

	bill, err := s.svc.Bills.RecalculateBill(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

type waiveFeesBody struct {
	Reason string `json:"reason"`
}

func (s *Server) waiveFees(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, ok := s.ownedBill(c, id); !ok {
		return
	}

	var body waiveFeesBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	result, err := s.svc.Fees.WaiveFees(c.Request.Context(), id, body.Reason)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
