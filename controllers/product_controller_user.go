package controllers

import (
	"context"
	"net/http"
	"time"

	"grocery/services"

	"github.com/gin-gonic/gin"
)

const productTimeout = 5 * time.Second

func GetProductsPublic(products *services.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), productTimeout)
		defer cancel()

		list, err := products.Browse(ctx, c.Query("q"), c.Query("category"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": list})
	}
}

func GetProductPublic(products *services.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), productTimeout)
		defer cancel()

		p, err := products.Get(ctx, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": p})
	}
}
