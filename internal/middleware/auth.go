package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"device-sync/internal/config"
)

const userIDKey = "userID"

// UserIDFromContext returns the acting user resolved by Auth, or "" when the
// request never passed through it.
func UserIDFromContext(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Auth resolves the acting user for every request. With a configured token
// the caller must present it as a bearer credential and name the user via
// X-User-ID; without one the service runs open (local/dev) and unidentified
// callers share the "default" user.
func Auth(cfg config.Config) gin.HandlerFunc {
	token := strings.TrimSpace(cfg.AuthToken)
	return func(c *gin.Context) {
		if token != "" && !bearerMatches(c.GetHeader("Authorization"), token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if userID == "" {
			if token != "" {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "x-user-id required"})
				return
			}
			userID = "default"
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func bearerMatches(header, token string) bool {
	h := strings.TrimSpace(header)
	if len(h) <= 7 || !strings.EqualFold(h[:7], "bearer ") {
		return false
	}
	return strings.TrimSpace(h[7:]) == token
}
