package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/neuroscan-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status    string      `json:"status"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

func NewSuccessResponse(message string, data interface{}) *Response {
	return &Response{
		Status:  "success",
		Message: message,
		Data:    data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondWithSuccess sends a 200 response
func RespondWithSuccess(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, NewSuccessResponse(message, data))
}

// RespondWithCreated sends a 201 response
func RespondWithCreated(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, NewSuccessResponse(message, data))
}

// RespondWithError maps err onto the error envelope and aborts the chain.
// The error is attached to the context so the error middleware can log it.
func RespondWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := errors.HTTPStatus(err)
	resp := NewErrorResponse("internal server error")
	if appErr, ok := errors.As(err); ok {
		resp.Retryable = appErr.Retryable()
		if status < http.StatusInternalServerError || appErr.Code != errors.ErrInternal {
			resp.Message = appErr.Message
		}
	}

	c.AbortWithStatusJSON(status, resp)
}
