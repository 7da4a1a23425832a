package controllers

import (
	"context"
	"net/http"
	"time"

	"grocery/middleware"
	"grocery/pricing"
	"grocery/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const cartTimeout = 5 * time.Second

type cartResponse struct {
	Msg string `json:"msg"`
	*services.CartView
}

func AddToCart(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() { middleware.RecordCartOperation("add", middleware.Succeeded(c)) }()

		var body struct {
			ProductID string `json:"productId" binding:"required"`
			Quantity  *int   `json:"quantity" binding:"required,lte=1000"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			respondInvalid(c, err)
			return
		}
		productID, err := primitive.ObjectIDFromHex(body.ProductID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid productId"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), cartTimeout)
		defer cancel()

		view, err := carts.SetItemQuantity(ctx, middleware.UserID(c), productID, *body.Quantity)
		if err != nil {
			respondError(c, err)
			return
		}

		msg := "Cart updated"
		if *body.Quantity <= 0 {
			msg = "Product removed from cart"
		}
		c.JSON(http.StatusOK, cartResponse{Msg: msg, CartView: view})
	}
}

func UpdateCharges(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() { middleware.RecordCartOperation("update_charges", middleware.Succeeded(c)) }()

		var body pricing.ChargesUpdate
		if err := c.ShouldBindJSON(&body); err != nil {
			respondInvalid(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), cartTimeout)
		defer cancel()

		view, err := carts.SetCharges(ctx, middleware.UserID(c), body)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cartResponse{Msg: "Charges updated", CartView: view})
	}
}

func GetCart(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() { middleware.RecordCartOperation("get", middleware.Succeeded(c)) }()

		ctx, cancel := context.WithTimeout(c.Request.Context(), cartTimeout)
		defer cancel()

		view, err := carts.GetCart(ctx, middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cartResponse{Msg: "Fetch success", CartView: view})
	}
}

func ClearCart(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() { middleware.RecordCartOperation("clear", middleware.Succeeded(c)) }()

		ctx, cancel := context.WithTimeout(c.Request.Context(), cartTimeout)
		defer cancel()

		if err := carts.ClearCart(ctx, middleware.UserID(c)); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Cart cleared"})
	}
}

// MergeCart folds the cart of a guest token into the caller's cart.
func MergeCart(carts *services.CartService, auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() { middleware.RecordCartOperation("merge", middleware.Succeeded(c)) }()

		var body struct {
			GuestToken string `json:"guestToken" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			respondInvalid(c, err)
			return
		}
		guest, err := auth.GuestOwner(body.GuestToken)
		if err != nil {
			respondError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), cartTimeout)
		defer cancel()

		view, err := carts.MergeGuestCart(ctx, guest, middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cartResponse{Msg: "Guest cart merged", CartView: view})
	}
}

// GetCartAdmin shows the priced cart of any owner.
func GetCartAdmin(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cartTimeout)
		defer cancel()

		view, err := carts.GetCart(ctx, c.Param("userId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": view})
	}
}
