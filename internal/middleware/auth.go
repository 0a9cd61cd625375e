package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenValidator is the authentication collaborator seam. The service never
// validates credentials itself; it hands the bearer token to whatever
// implementation was wired in.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (userID string, username string, err error)
}

// AuthMiddleware validates the Authorization header and stores the caller
// identity on the request context.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		userID, username, err := validator.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("userID", userID)
		c.Set("username", username)
		c.Next()
	}
}

// Identity reads the authenticated caller set by AuthMiddleware.
func Identity(c *gin.Context) (userID, username string) {
	return c.GetString("userID"), c.GetString("username")
}

// BearerToken extracts the token from the Authorization header or, for
// websocket/SSE handshakes where headers are awkward, the token query
// parameter.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
