package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"grocery/models"
	"grocery/services"
	"grocery/utils"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID = "userId"
	ContextRole   = "role"
	ContextToken  = "token"
)

// Authenticator verifies bearer tokens, including the blacklist check.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*utils.Claims, error)
}

func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := utils.BearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		claims, err := auth.Authenticate(ctx, tokenString)
		if err != nil {
			var svcErr *services.Error
			if errors.As(err, &svcErr) && svcErr.Kind == services.KindUnauthorized {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Could not verify token"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextToken, tokenString)
		c.Next()
	}
}

// RequireCustomer rejects guest tokens on routes that need an account.
func RequireCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) == models.RoleGuest {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Please log in to continue"})
			return
		}
		c.Next()
	}
}

func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != models.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied: admin only"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated owner key set by AuthMiddleware.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// QueryToken lets browser websocket clients, which cannot set headers, pass
// the bearer token as ?token=.
func QueryToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			if token := c.Query("token"); token != "" {
				c.Request.Header.Set("Authorization", "Bearer "+token)
			}
		}
		c.Next()
	}
}
