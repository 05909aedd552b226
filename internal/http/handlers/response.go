// Package handlers provides the HTTP handlers of the companion's view API.
//
// This file defines the response helpers shared by every endpoint: a single
// error envelope, the mapping from service errors to status and code, and
// small success writers.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/punkhunt/internal/http/middleware"
	"github.com/tbourn/punkhunt/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"game_over"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"game over"`
}

// fail aborts the request with a structured error. Server errors are logged
// with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail, used by the router for NoRoute and
// NoMethod.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// serviceErrors maps sentinel errors to their HTTP status and code. Order
// matters only for wrapped chains, which never carry two of these.
var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrUnknownLane, http.StatusNotFound, ErrCodeUnknownLane},
	{services.ErrTransactionInFlight, http.StatusConflict, ErrCodeTransactionInFlight},
	{services.ErrWalletDisconnected, http.StatusBadRequest, ErrCodeWalletDisconnected},
	{services.ErrInvalidAmount, http.StatusBadRequest, ErrCodeInvalidAmount},
	{services.ErrPriceUnavailable, http.StatusBadRequest, ErrCodePriceUnavailable},
	{services.ErrInsufficientZappers, http.StatusBadRequest, ErrCodeInsufficientZappers},
	{services.ErrHuntingClosed, http.StatusBadRequest, ErrCodeHuntingClosed},
	{services.ErrGameOver, http.StatusBadRequest, ErrCodeGameOver},
	{services.ErrMintClosed, http.StatusBadRequest, ErrCodeMintClosed},
	{services.ErrEmptyMessage, http.StatusBadRequest, ErrCodeEmptyMessage},
	{services.ErrChatClosed, http.StatusConflict, ErrCodeChatClosed},
	{services.ErrNotConnected, http.StatusServiceUnavailable, ErrCodeNotConnected},
}

// failErr translates err into the matching envelope, falling back to 500.
func failErr(c *gin.Context, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			fail(c, m.status, m.code, err.Error())
			return
		}
	}
	if services.IsValidation(err) {
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
