// Package middleware contains the Gin middleware shared by every route.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS returns middleware that sets Cross-Origin Resource Sharing headers.
// The device-report frontend is served from a different origin than this API,
// so browsers need these headers before they let it read our responses.
//
// An allowedOrigins entry of "*" allows every origin. For preflight OPTIONS
// requests we return 204 immediately.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	wildcard := false
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			wildcard = true
		}
		originSet[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := ""
		if wildcard {
			allowed = "*"
		} else if _, ok := originSet[origin]; ok {
			allowed = origin
			c.Header("Vary", "Origin")
		}

		if allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", RequestIDHeader)
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
