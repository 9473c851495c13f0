package httpkit

import (
	"errors"
	"net/http"

	"leadflow_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// DomainError maps an error to an HTTP response. Typed apperr errors carry
// their own status; anything else is treated as a bad request.
func DomainError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		Error(c, appErr.HTTPStatus(), appErr.Message, appErr.Details)
		return
	}
	Error(c, http.StatusBadRequest, err.Error(), nil)
}
