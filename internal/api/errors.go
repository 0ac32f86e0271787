package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/ledger-server/internal/models"
	"github.com/rongwang/ledger-server/internal/service"
	"go.uber.org/zap"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings translates ledger error kinds into HTTP responses
var errorMappings = []errorMapping{
	{service.ErrDuplicateUser, http.StatusForbidden, "USER_EXISTS"},
	{service.ErrUnknownUser, http.StatusNotFound, "USER_NOT_FOUND"},
	{service.ErrUnknownTransaction, http.StatusNotFound, "TRANSACTION_NOT_FOUND"},
	{service.ErrInvalidIdentifier, http.StatusBadRequest, "INVALID_IDENTIFIER"},
	{service.ErrInvalidPassword, http.StatusBadRequest, "INVALID_PASSWORD"},
	{service.ErrInvalidTransactionType, http.StatusBadRequest, "INVALID_TRANSACTION_TYPE"},
	{service.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
	{service.ErrInvalidRecipient, http.StatusBadRequest, "INVALID_RECIPIENT"},
	{service.ErrInvalidOrder, http.StatusBadRequest, "INVALID_ORDER"},
	{service.ErrInsufficientFunds, http.StatusConflict, "INSUFFICIENT_FUNDS"},
	{service.ErrDuplicateTransaction, http.StatusConflict, "DUPLICATE_TRANSACTION"},
}

func writeError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			c.JSON(m.status, models.ErrorResponse{
				Status:  "error",
				Code:    m.code,
				Message: err.Error(),
			})
			return
		}
	}

	loggerFor(c).Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Status:  "error",
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
	})
}

func writeBadRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}
