package middleware

import (
	"net/http"
	"strings"

	"github.com/bloopsocial/bloop/internal/auth/jwt"
	"github.com/gin-gonic/gin"
)

// Context keys set by JWTAuthMiddleware
const (
	ClaimsKey = "claims"
	UserIDKey = "user_id"
)

// BearerToken extracts the token of an "Authorization: Bearer <token>" header
func BearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// JWTAuthMiddleware creates a middleware that validates JWT tokens
func JWTAuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		// Validate the token
		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		// Add the claims to the context
		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, claims.Subject())
		c.Next()
	}
}

// UserID returns the authenticated user set by JWTAuthMiddleware
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
