package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// UserIDHeader carries the caller identity set by the auth proxy in front of the
// service.
const UserIDHeader = "X-User-ID"

const (
	userIDKey       = "user_id"
	maxUserIDLength = 128
)

// RequireUser rejects requests without a caller identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserIDHeader + " header"})
			return
		}
		if len(id) > maxUserIDLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user id too long"})
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

// UserID returns the identity stored by RequireUser.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
