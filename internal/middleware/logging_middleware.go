// internal/middleware/logging_middleware.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"openbci-service/internal/utils"
)

func LoggingMiddleware(logger *utils.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		logger.LogAPIRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.GetString(RequestIDKey),
			c.ClientIP(),
			c.Writer.Status(),
			time.Since(startTime),
		)
	}
}
