package auth

import (
	"strings"

	"opendebate/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// OptionalAuthMiddleware sets the userID in the context when a valid token
// is supplied, and silently continues without one otherwise. Public
// endpoints use it to personalize responses for logged-in callers.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.Next()
				return
			}
			tokenString = parts[1]
		}

		if tokenString != "" {
			if userID, err := jwt.ParseUserID(tokenString); err == nil {
				c.Set("userID", userID)
			}
		}
		c.Next()
	}
}
