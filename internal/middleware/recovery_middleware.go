// internal/middleware/recovery_middleware.go
package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rn2903-service/internal/utils"
)

// RecoveryMiddleware turns a handler panic into the standard error envelope.
// The panic value is logged and attached to the request errors, never sent to the client.
// A panic after the response started only aborts the request.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		err := fmt.Errorf("panic: %v", recovered)
		_ = c.Error(err)

		logger.Error("Handler panicked",
			zap.Error(err),
			zap.String("route", routeOf(c)),
			zap.String("method", c.Request.Method),
			zap.String("request_id", utils.GetRequestID(c)),
			zap.Bool("response_started", c.Writer.Written()),
			zap.Stack("stacktrace"),
		)

		if !c.Writer.Written() {
			utils.CodedErrorResponse(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error", nil, nil)
		}
		c.Abort()
	})
}
