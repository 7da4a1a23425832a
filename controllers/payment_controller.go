package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"grocery/middleware"
	"grocery/payment"
	"grocery/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const maxCallbackBody = 64 << 10

// PaymentCallback accepts the gateway webhook. The signature covers the raw
// body, so it is checked before anything is decoded.
func PaymentCallback(orders *services.OrderService, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() { middleware.RecordOrderOperation("payment_callback", middleware.Succeeded(c)) }()

		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read body"})
			return
		}
		if err := payment.Verify(secret, raw, c.GetHeader(payment.SignatureHeader)); err != nil {
			if !errors.Is(err, payment.ErrBadSignature) {
				_ = c.Error(err)
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
			return
		}

		var cb payment.Callback
		if err := binding.JSON.BindBody(raw, &cb); err != nil {
			respondInvalid(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), orderTimeout)
		defer cancel()

		order, err := orders.OnPaymentCallback(ctx, services.PaymentResult{
			OrderID:   cb.OrderID,
			Reference: cb.Reference,
			Status:    cb.Status,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"orderId":       order.ID.Hex(),
			"status":        order.Status,
			"paymentStatus": order.PaymentStatus,
		})
	}
}
