package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xtding233/wish-ledger/internal/catalog"
	"github.com/xtding233/wish-ledger/internal/ledger"
	"github.com/xtding233/wish-ledger/internal/pricing"
)

// Business codes carried in Response.Code. 0 is success.
const (
	CodeOK                = 0
	CodeBadRequest        = 40000
	CodeInsufficientFunds = 40200
	CodeNotFound          = 40400
	CodeInternal          = 50000
	CodeNotImplemented    = 50100
	CodeUnavailable       = 50300
)

// Response is the envelope of every JSON reply.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: CodeOK, Message: "ok", Data: data})
}

func fail(c *gin.Context, httpStatus, code int, message string) {
	c.AbortWithStatusJSON(httpStatus, Response{Code: code, Message: message})
}

// failErr maps domain errors onto HTTP status and business code.
func failErr(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	fail(c, status, code, err.Error())
}

func classify(err error) (status, code int) {
	switch {
	case errors.Is(err, ledger.ErrInvalidArgument),
		errors.Is(err, pricing.ErrTooLarge):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, catalog.ErrBannerNotFound),
		errors.Is(err, catalog.ErrItemNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired, CodeInsufficientFunds
	case errors.Is(err, ledger.ErrNotImplemented):
		return http.StatusNotImplemented, CodeNotImplemented
	case errors.Is(err, pricing.ErrNoPacks),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
