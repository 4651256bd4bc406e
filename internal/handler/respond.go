package handler

import (
	"errors"
	"net/http"

	"linkup/backend/internal/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
	Code  string `json:"code,omitempty" example:"user_not_found"`
}

// respondError maps domain errors onto HTTP statuses. Domain errors carry
// their code and message to the client unmodified; anything else is a 500.
func respondError(c *gin.Context, err error) {
	var domainErr *apperr.Error
	if !errors.As(err, &domainErr) {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	status := http.StatusInternalServerError
	switch domainErr.Kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindAuthorization:
		status = http.StatusForbidden
	case apperr.KindDelivery:
		status = http.StatusBadGateway
	}

	c.JSON(status, ErrorResponse{Error: domainErr.Message, Code: domainErr.Code})
}

// viewerID returns the authenticated user id set by the auth middleware.
func viewerID(c *gin.Context) string {
	id, _ := c.Get("userID")
	s, _ := id.(string)
	return s
}
