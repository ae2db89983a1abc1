package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/logging"
	"github.com/livefire2015/ez-cards/src/models"
)

// respondError maps service errors to status codes and JSON bodies
func (s *Server) respondError(c *gin.Context, err error) {
	var (
		validation   *models.ValidationError
		notFound     *models.NotFoundError
		hasPayments  *models.HasPaymentsError
		insufficient *models.InsufficientLimitError
	)

	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     "insufficient_limit",
			"message":   insufficient.Error(),
			"card_id":   insufficient.CardID,
			"requested": insufficient.Requested.StringFixed(2),
			"available": insufficient.Available.StringFixed(2),
		})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"field":   validation.Field,
			"message": validation.Error(),
		})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": notFound.Error(),
		})
	case errors.As(err, &hasPayments):
		c.JSON(http.StatusConflict, gin.H{
			"error":         "bill_has_payments",
			"message":       hasPayments.Error(),
			"bill_id":       hasPayments.BillID,
			"payment_count": hasPayments.PaymentCount,
		})
	default:
		s.logger.ErrorContext(c.Request.Context(), "request failed",
			logging.FieldPath, c.FullPath(),
			logging.FieldError, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": message})
}

// pathID parses the :id route parameter; on failure it writes a 400 and
// returns false
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
