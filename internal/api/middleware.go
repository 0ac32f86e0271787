package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rongwang/ledger-server/internal/models"
	"github.com/rongwang/ledger-server/internal/service"
	"github.com/rongwang/ledger-server/internal/utils"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"
	userKey         = "user"
)

// RequestLogger returns a Gin middleware that tags every request with an ID
// and logs its outcome
func RequestLogger(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(requestIDHeader, requestID)

		reqLogger := logger.With(zap.String("request_id", requestID))
		c.Set(loggerKey, reqLogger)

		c.Next()

		reqLogger.Info("request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// PasswordMiddleware returns a Gin middleware that checks the password query
// parameter against the user named in the path
func PasswordMiddleware(svc service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		password := c.Query("password")
		if password == "" {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Status:  "error",
				Code:    "MISSING_PASSWORD",
				Message: "Password required",
			})
			c.Abort()
			return
		}

		user, err := svc.Authenticate(c.Request.Context(), c.Param("username"), password)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}

		// Set the authenticated user in the context
		c.Set(userKey, user)
		c.Next()
	}
}

// loggerFor returns the request-scoped logger, or a no-op logger outside RequestLogger
func loggerFor(c *gin.Context) *utils.Logger {
	if l, ok := c.Get(loggerKey); ok {
		if logger, ok := l.(*utils.Logger); ok {
			return logger
		}
	}
	return utils.NopLogger()
}
