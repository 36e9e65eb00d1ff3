// internal/middleware/logging_middleware.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"rn2903-service/internal/utils"
)

// LoggingMiddleware logs every request once it completes, with the error
// envelope code and the errors handlers attached to the context
func LoggingMiddleware(logger *utils.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		req := utils.APIRequest{
			Method:    c.Request.Method,
			Route:     routeOf(c),
			Path:      c.Request.URL.Path,
			ClientIP:  c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			RequestID: utils.GetRequestID(c),
			Status:    c.Writer.Status(),
			Duration:  time.Since(start),
			ErrorCode: utils.GetErrorCode(c),
			Websocket: c.IsWebsocket(),
		}
		for _, err := range c.Errors {
			req.Errors = append(req.Errors, err.Error())
		}
		logger.LogAPIRequest(req)
	}
}

// routeOf returns the matched route template, so /radio/history?limit=5 and
// /radio/history log under one key
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
