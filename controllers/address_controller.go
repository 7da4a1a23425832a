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

const addressTimeout = 5 * time.Second

func GetAddresses(addresses *services.AddressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), addressTimeout)
		defer cancel()

		list, err := addresses.List(ctx, middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": list})
	}
}

func CreateAddress(addresses *services.AddressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			AddressType   models.AddressType `json:"addressType" binding:"required"`
			CustomName    string             `json:"customName"`
			ReceiverName  string             `json:"receiverName"`
			ReceiverPhone string             `json:"receiverPhone"`
			Line1         string             `json:"line1"`
			Line2         string             `json:"line2"`
			Landmark      string             `json:"landmark"`
			City          string             `json:"city"`
			State         string             `json:"state"`
			Pincode       string             `json:"pincode"`
			IsDefault     bool               `json:"isDefault"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			respondInvalid(c, err)
			return
		}

		address := models.Address{
			AddressType:   body.AddressType,
			CustomName:    body.CustomName,
			ReceiverName:  body.ReceiverName,
			ReceiverPhone: body.ReceiverPhone,
			Line1:         body.Line1,
			Line2:         body.Line2,
			Landmark:      body.Landmark,
			City:          body.City,
			State:         body.State,
			Pincode:       body.Pincode,
			IsDefault:     body.IsDefault,
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), addressTimeout)
		defer cancel()

		if err := addresses.Create(ctx, middleware.UserID(c), &address); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Address saved", "data": address})
	}
}

func SetDefaultAddress(addresses *services.AddressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), addressTimeout)
		defer cancel()

		if err := addresses.SetDefault(ctx, middleware.UserID(c), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Default address updated", "id": c.Param("id")})
	}
}

func DeleteAddress(addresses *services.AddressService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), addressTimeout)
		defer cancel()

		if err := addresses.Delete(ctx, middleware.UserID(c), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Address deleted", "id": c.Param("id")})
	}
}
