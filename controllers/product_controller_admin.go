package controllers

import (
	"context"
	"net/http"

	"grocery/models"
	"grocery/services"

	"github.com/gin-gonic/gin"
)

func CreateProduct(products *services.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		product := models.Product{IsActive: true}
		if err := c.ShouldBindJSON(&product); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), productTimeout)
		defer cancel()

		if err := products.Create(ctx, &product); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Product created", "product": product})
	}
}

func GetProductsAdmin(products *services.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), productTimeout)
		defer cancel()

		list, err := products.AdminList(ctx, c.Query("q"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":  "Fetch products success",
			"count":    len(list),
			"products": list,
		})
	}
}

func GetProductAdmin(products *services.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), productTimeout)
		defer cancel()

		p, err := products.AdminGet(ctx, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "product": p})
	}
}

func UpdateProduct(products *services.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body models.ProductUpdate
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), productTimeout)
		defer cancel()

		updated, err := products.Update(ctx, c.Param("id"), body)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Product updated", "product": updated})
	}
}

func DeleteProduct(products *services.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		ctx, cancel := context.WithTimeout(c.Request.Context(), productTimeout)
		defer cancel()

		if err := products.Delete(ctx, id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Product deleted", "id": id})
	}
}
