package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/licito/backend/pkg/logger"
)

// Recovery turns a panic into a 500 carrying the request id. A response
// that already started, such as an assistant stream, is only cut short.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			started := c.Writer.Written()
			logger.Error(c.Request.Context(), "panic recovered",
				"error", rec,
				"method", c.Request.Method,
				"route", c.FullPath(),
				"response_started", started,
				"stack", string(debug.Stack()),
			)

			if started {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "Erro interno do servidor",
				"request_id": GetRequestID(c),
			})
		}()

		c.Next()
	}
}
