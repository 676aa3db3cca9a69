package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/mediflow/scheduler-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError maps application error codes onto HTTP statuses and writes
// the standard error envelope.
func RespondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case apperrors.ErrNotFound:
			status = http.StatusNotFound
		case apperrors.ErrBadRequest, apperrors.ErrPastDateTime:
			status = http.StatusBadRequest
		case apperrors.ErrAlreadyBooked, apperrors.ErrNotBooked, apperrors.ErrSchedulingConflict, apperrors.ErrInvalidTransition:
			status = http.StatusConflict
		}
	}

	c.JSON(status, NewErrorResponse(err.Error()))
}
