package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	log "github.com/Regdarim/arni-worker/internal/logging"
)

// RequestLog emits one line per completed request.
func RequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infof("%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Millisecond))
	}
}
