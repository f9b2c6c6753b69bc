// Package httpapi exposes the HTTP API layer of the service.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tzmart/internal/domain"
)

// jsonError represents a JSON error payload.
type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeError maps the domain error taxonomy onto status codes. Validation
// and conflict errors surface their structured detail; anything unexpected
// is logged in full and returned opaque.
func writeError(c *gin.Context, err error) {
	var stockErr *domain.InsufficientStockError
	var payErr *domain.InsufficientPaymentError

	switch {
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrQuantityInvalid):
		c.JSON(http.StatusBadRequest, jsonError{Error: err.Error()})

	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, jsonError{Error: err.Error()})

	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, jsonError{Error: "insufficient stock", Details: stockErr.Error()})

	case errors.As(err, &payErr):
		c.JSON(http.StatusConflict, jsonError{Error: "insufficient payment amount", Details: payErr.Error()})

	case errors.Is(err, domain.ErrCouponInvalid),
		errors.Is(err, domain.ErrCouponExpired),
		errors.Is(err, domain.ErrCouponExhausted),
		errors.Is(err, domain.ErrCouponExists),
		errors.Is(err, domain.ErrOrderNotPending),
		errors.Is(err, domain.ErrPaymentDeclined):
		c.JSON(http.StatusConflict, jsonError{Error: err.Error()})

	case errors.Is(err, domain.ErrLockNotAvailable):
		c.JSON(http.StatusServiceUnavailable, jsonError{Error: "resource busy, retry"})

	default:
		slog.Error("internal error", slog.String("path", c.FullPath()), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, jsonError{Error: "internal error"})
	}
}
