// Package middleware provides the HTTP middleware for the worker's
// routes: request size limiting, API key extraction and request logging.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultMaxRequestSize bounds request bodies. The surface is JSON CRUD
// plus small proxy payloads; 1MB is generous.
const DefaultMaxRequestSize = 1 << 20

// RequestSizeLimit caps request body size with http.MaxBytesReader,
// which returns 413 and closes the connection when exceeded.
func RequestSizeLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
