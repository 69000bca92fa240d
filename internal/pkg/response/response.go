package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
)

// Response is the JSON envelope of every API reply.
type Response struct {
	Code    int    `json:"code"` // 0 on success, otherwise a business code
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

func emptyIfNil(data any) any {
	if data == nil {
		return struct{}{}
	}
	return data
}

// Success writes a 200 envelope.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: apperrors.Success, Data: emptyIfNil(data)})
}

// SuccessWithMessage writes a 200 envelope with a human-readable message.
func SuccessWithMessage(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{Code: apperrors.Success, Message: message, Data: emptyIfNil(data)})
}

// HandleError maps err to its business code and HTTP status and aborts the
// chain. Non-AppErrors become a 500 with no internal detail.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code := apperrors.ExtractCode(err)
	c.AbortWithStatusJSON(apperrors.GetHTTPStatus(code), Response{
		Code:    code,
		Message: apperrors.FormatError(code, apperrors.GetDetails(err)),
		Data:    struct{}{},
	})
}

// ErrorWithCode writes an error envelope for code and aborts the chain.
func ErrorWithCode(c *gin.Context, code int, details ...string) {
	c.AbortWithStatusJSON(apperrors.GetHTTPStatus(code), Response{
		Code:    code,
		Message: apperrors.FormatError(code, details...),
		Data:    struct{}{},
	})
}

// ErrorWithData writes an error envelope that still carries a payload, for
// failures the client needs details about.
func ErrorWithData(c *gin.Context, code int, message string, data any) {
	if message == "" {
		message = apperrors.GetMessage(code)
	}
	c.AbortWithStatusJSON(apperrors.GetHTTPStatus(code), Response{
		Code:    code,
		Message: message,
		Data:    emptyIfNil(data),
	})
}

// BadRequest is ErrorWithCode(ErrInvalidParams) for binding failures.
func BadRequest(c *gin.Context, details string) {
	ErrorWithCode(c, apperrors.ErrInvalidParams, details)
}
