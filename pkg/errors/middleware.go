package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"companion-engine/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler turns errors attached via c.Error into the standard
// error response envelope, logging each one with request context.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := FromError(c.Errors[0].Err)

		requestLogger(c).Error("request error",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"status_code", appErr.StatusCode,
			"error_code", appErr.Code,
			"message", appErr.Message,
			"details", appErr.Details,
		)

		c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			},
		})
	}
}

// RecoveryWithLogger converts panics into 500 responses. The panic
// and stack go to the log; the stack reaches the client only in debug
// mode.
func RecoveryWithLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			stack := string(debug.Stack())
			requestLogger(c).Error("panic recovered",
				"error", r,
				"stack", stack,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)

			var details interface{}
			if gin.Mode() == gin.DebugMode {
				details = fmt.Sprintf("Panic: %v\n%s", r, stack)
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "SERVER_ERROR",
					"message": "The server encountered an unexpected error",
					"details": details,
				},
			})
		}()

		c.Next()
	}
}

// requestLogger returns the request-scoped logger when the logging
// middleware has run, falling back to the process default.
func requestLogger(c *gin.Context) *logger.Logger {
	if l, ok := c.Get("logger"); ok {
		if scoped, ok := l.(*logger.Logger); ok {
			return scoped
		}
	}
	return logger.GetGlobal()
}
