package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicflow/encounter-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithCreated sends a 201 response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError maps an application error onto an HTTP status.
// Conflicts and stale state both map to 409; only stale state is retryable.
func RespondWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	retryable := false

	switch errors.Code(err) {
	case errors.ErrNotFound:
		status = http.StatusNotFound
	case errors.ErrBadRequest:
		status = http.StatusBadRequest
	case errors.ErrConflict:
		status = http.StatusConflict
	case errors.ErrStaleState:
		status = http.StatusConflict
		retryable = true
	}

	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:      int(errors.Code(err)),
			Message:   err.Error(),
			Retryable: retryable,
		},
	})
}
