package middleware

import (
	"github.com/gin-gonic/gin"

	log "github.com/Regdarim/arni-worker/internal/logging"
)

// ContextKeyAPIKey is where the extracted key lands in the gin context.
const ContextKeyAPIKey = "api_key"

// APIKeyReader extracts X-API-Key (or a Bearer token) into the request
// context. The key is read but never checked: authentication is
// explicitly out of scope, and callers without a key proceed untouched.
func APIKeyReader() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			if auth := c.GetHeader("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
				key = auth[7:]
			}
		}
		if key != "" {
			c.Set(ContextKeyAPIKey, key)
			log.Debugf("request carries api key (%d chars)", len(key))
		}
		c.Next()
	}
}
