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

const orderTimeout = 10 * time.Second

type placeOrderRequest struct {
	AddressID     string `json:"addressId" binding:"required"`
	PaymentMethod string `json:"paymentMethod" binding:"required"`
	Items         []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	FromCart       bool     `json:"fromCart"`
	DeliveryCharge *float64 `json:"deliveryCharge"`
	HandlingCharge *float64 `json:"handlingCharge"`
	TipAmount      *float64 `json:"tipAmount"`
	DonationAmount *float64 `json:"donationAmount"`
	OrderNotes     string   `json:"orderNotes"`
}

func (r placeOrderRequest) input() services.PlaceOrderInput {
	in := services.PlaceOrderInput{
		AddressID:     r.AddressID,
		PaymentMethod: models.PaymentMethod(r.PaymentMethod),
		FromCart:      r.FromCart,
		OrderNotes:    r.OrderNotes,
	}
	in.Charges.DeliveryCharge = r.DeliveryCharge
	in.Charges.HandlingCharge = r.HandlingCharge
	in.Charges.TipAmount = r.TipAmount
	in.Charges.DonationAmount = r.DonationAmount
	for _, it := range r.Items {
		in.Items = append(in.Items, services.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return in
}

// PlaceOrder creates an order from explicit items or from the caller's cart.
// Online payment methods answer with the gateway redirect instead of the order.
func PlaceOrder(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() { middleware.RecordOrderOperation("create", middleware.Succeeded(c)) }()

		var body placeOrderRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			respondInvalid(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), orderTimeout)
		defer cancel()

		result, err := orders.PlaceOrder(ctx, middleware.UserID(c), body.input())
		if err != nil {
			respondError(c, err)
			return
		}

		order := result.Order
		if result.PaymentURL != "" {
			c.JSON(http.StatusOK, gin.H{
				"success":    true,
				"paymentUrl": result.PaymentURL,
				"orderId":    order.ID.Hex(),
				"message":    "Redirect to complete payment",
			})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"orderId": order.ID.Hex(),
			"message": "Order placed successfully",
			"order": gin.H{
				"id":                order.ID.Hex(),
				"status":            order.Status,
				"total":             order.GrandTotal,
				"estimatedDelivery": order.EstimatedDelivery,
			},
		})
	}
}

func GetOrders(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() { middleware.RecordOrderOperation("list", middleware.Succeeded(c)) }()

		ctx, cancel := context.WithTimeout(c.Request.Context(), orderTimeout)
		defer cancel()

		list, err := orders.ListOrders(ctx, middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Fetch orders success", "data": list})
	}
}

func GetOrderByID(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() { middleware.RecordOrderOperation("get", middleware.Succeeded(c)) }()

		ctx, cancel := context.WithTimeout(c.Request.Context(), orderTimeout)
		defer cancel()

		order, err := orders.GetOrder(ctx, middleware.UserID(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func CancelOrder(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() { middleware.RecordOrderOperation("cancel", middleware.Succeeded(c)) }()

		var body struct {
			Reason string `json:"reason"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				respondInvalid(c, err)
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), orderTimeout)
		defer cancel()

		order, err := orders.CancelOrder(ctx, middleware.UserID(c), c.Param("id"), body.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order cancelled", "data": order})
	}
}
