package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messenger-service/internal/middleware"
)

const requestIDContextKey = "request_id"

// requestIDFromContext returns the request's correlation id, minting one
// the first time it is asked for.
func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

// auditUserID returns the authenticated user id for audit records, nil on
// unauthenticated routes.
func auditUserID(c *gin.Context) *int64 {
	userID := middleware.UserIDFromContext(c)
	if userID == 0 {
		return nil
	}
	value := int64(userID)
	return &value
}
