package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/apperr"
	"messenger-service/internal/logging"
)

// respondError maps a service error to the transport status and a safe
// message. Internal details are logged, never returned.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	msg := apperr.MessageOf(err)

	var status int
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindAuthorization:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
		logging.Component("handlers").WithError(err).Error("request failed")
		msg = "internal error"
	}

	c.JSON(status, gin.H{"error": msg})
}
