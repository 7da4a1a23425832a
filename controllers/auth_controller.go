package controllers

import (
	"context"
	"net/http"
	"time"

	"grocery/middleware"
	"grocery/models"
	"grocery/services"

	"github.com/gin-gonic/gin"
)

const authTimeout = 5 * time.Second

func userJSON(u *models.User) gin.H {
	return gin.H{
		"id":    u.ID.Hex(),
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	}
}

func Register(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name     string `json:"name" binding:"required"`
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), authTimeout)
		defer cancel()

		user, err := auth.Register(ctx, input.Name, input.Email, input.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "User registered successfully",
			"user":    userJSON(user),
		})
	}
}

// Login issues a bearer token. An optional guestToken has its cart merged
// into the account cart, which is returned alongside the user.
func Login(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email      string `json:"email" binding:"required"`
			Password   string `json:"password" binding:"required"`
			GuestToken string `json:"guestToken"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), authTimeout)
		defer cancel()

		session, err := auth.Login(ctx, input.Email, input.Password, input.GuestToken)
		if err != nil {
			respondError(c, err)
			return
		}

		user := userJSON(session.User)
		user["token"] = session.Token
		user["expiresAt"] = session.ExpiresAt
		resp := gin.H{"user": user}
		if session.Cart != nil {
			resp["cart"] = session.Cart
		}
		c.JSON(http.StatusOK, resp)
	}
}

func Logout(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), authTimeout)
		defer cancel()

		if err := auth.Logout(ctx, c.GetString(middleware.ContextToken)); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
	}
}

// GuestToken hands out a token that may only use the cart routes.
func GuestToken(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := auth.Guest()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"guestId":   session.GuestID,
			"token":     session.Token,
			"expiresAt": session.ExpiresAt,
		})
	}
}
