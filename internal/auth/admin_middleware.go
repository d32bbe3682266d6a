package auth

import (
	"net/http"

	"opendebate/backend/internal/database"
	"opendebate/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// RequireRole creates a gin middleware that checks the authenticated
// user's role. It must run after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var user models.User
		if err := database.DB.Select("role").First(&user, userID.(uint)).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authenticated user not found"})
			return
		}

		if user.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}

		c.Next()
	}
}

// AdminMiddleware restricts a route group to admin users.
func AdminMiddleware() gin.HandlerFunc {
	return RequireRole("admin")
}
