package controllers

import (
	"context"
	"net/http"
	"strconv"

	"grocery/middleware"
	"grocery/models"
	"grocery/realtime"
	"grocery/services"

	"github.com/gin-gonic/gin"
)

func GetOrdersAdmin(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() { middleware.RecordOrderOperation("admin_list", middleware.Succeeded(c)) }()

		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
				return
			}
			limit = n
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), orderTimeout)
		defer cancel()

		list, err := orders.AdminListOrders(ctx, models.OrderStatus(c.Query("status")), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "count": len(list), "data": list})
	}
}

func GetOrderByIDAdmin(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), orderTimeout)
		defer cancel()

		order, err := orders.AdminGetOrder(ctx, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": order})
	}
}

// UpdateOrderStatus advances an order one step, or cancels it.
func UpdateOrderStatus(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() { middleware.RecordOrderOperation("admin_status", middleware.Succeeded(c)) }()

		var body struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), orderTimeout)
		defer cancel()

		order, err := orders.AdminUpdateStatus(ctx, c.Param("id"), models.OrderStatus(body.Status))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "data": order})
	}
}

// OrderFeed upgrades to a websocket that streams order events.
func OrderFeed(hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		hub.ServeWS(c.Writer, c.Request)
	}
}
