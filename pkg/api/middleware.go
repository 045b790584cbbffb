package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// securityHeaders sets standard security response headers on every
// response.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Next()
	}
}

// operatorAuth rejects requests under /api/* with a missing or
// non-matching bearer token when an auth hash has been set via
// SetAuthHash. With no hash set (the default) it is a no-op, since this
// is an ambient HTTP-surface guard rather than a tenancy boundary.
func (s *Server) operatorAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authHash == nil {
			c.Next()
			return
		}

		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" || !checkPassword(s.authHash, token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}
		c.Next()
	}
}
