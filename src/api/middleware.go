package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/livefire2015/ez-cards/src/logging"
)

// UserHeader carries the caller's user id
const UserHeader = "X-User-ID"

const userIDKey = "userID"

// UserMiddleware requires a valid X-User-ID header and stores the parsed id
// in the gin context
func UserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(UserHeader)
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_header_missing"})
			return
		}

		userID, err := uuid.Parse(header)
		if err != nil || userID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_header_invalid"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) uuid.UUID {
	return c.MustGet(userIDKey).(uuid.UUID)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.InfoContext(c.Request.Context(), "request",
			logging.FieldMethod, c.Request.Method,
			logging.FieldPath, c.FullPath(),
			logging.FieldCode, c.Writer.Status(),
			logging.FieldDuration, time.Since(start).Milliseconds())
	}
}
