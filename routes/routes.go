package routes

import (
	"net/http"

	"grocery/controllers"
	"grocery/middleware"
	"grocery/realtime"
	"grocery/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the services the HTTP layer is wired to.
type Deps struct {
	Auth          *services.AuthService
	Carts         *services.CartService
	Orders        *services.OrderService
	Products      *services.ProductService
	Addresses     *services.AddressService
	Hub           *realtime.Hub
	WebhookSecret string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/register", controllers.Register(d.Auth))
		api.POST("/login", controllers.Login(d.Auth))
		api.POST("/auth/guest", controllers.GuestToken(d.Auth))
		api.GET("/products", controllers.GetProductsPublic(d.Products))
		api.GET("/products/:id", controllers.GetProductPublic(d.Products))
		api.POST("/payments/callback", controllers.PaymentCallback(d.Orders, d.WebhookSecret))

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(d.Auth))
		{
			protected.POST("/logout", controllers.Logout(d.Auth))

			cart := protected.Group("/cart")
			{
				cart.GET("", controllers.GetCart(d.Carts))
				cart.POST("/add", controllers.AddToCart(d.Carts))
				cart.POST("/update-charges", controllers.UpdateCharges(d.Carts))
				cart.DELETE("", controllers.ClearCart(d.Carts))
				cart.POST("/merge", middleware.RequireCustomer(), controllers.MergeCart(d.Carts, d.Auth))
			}

			customer := protected.Group("/")
			customer.Use(middleware.RequireCustomer())
			{
				customer.POST("/orders", controllers.PlaceOrder(d.Orders))
				customer.GET("/orders", controllers.GetOrders(d.Orders))
				customer.GET("/orders/:id", controllers.GetOrderByID(d.Orders))
				customer.PUT("/orders/:id/cancel", controllers.CancelOrder(d.Orders))

				customer.GET("/addresses", controllers.GetAddresses(d.Addresses))
				customer.POST("/addresses", controllers.CreateAddress(d.Addresses))
				customer.PUT("/addresses/:id/default", controllers.SetDefaultAddress(d.Addresses))
				customer.DELETE("/addresses/:id", controllers.DeleteAddress(d.Addresses))
			}

			admin := protected.Group("/admin")
			admin.Use(middleware.AdminMiddleware())
			{
				admin.POST("/products", controllers.CreateProduct(d.Products))
				admin.PUT("/products/:id", controllers.UpdateProduct(d.Products))
				admin.DELETE("/products/:id", controllers.DeleteProduct(d.Products))
				admin.GET("/products", controllers.GetProductsAdmin(d.Products))
				admin.GET("/products/:id", controllers.GetProductAdmin(d.Products))

				admin.GET("/orders", controllers.GetOrdersAdmin(d.Orders))
				admin.GET("/orders/:id", controllers.GetOrderByIDAdmin(d.Orders))
				admin.PUT("/orders/:id/status", controllers.UpdateOrderStatus(d.Orders))

				admin.GET("/carts/:userId", controllers.GetCartAdmin(d.Carts))
			}
		}

		if d.Hub != nil {
			api.GET("/admin/orders/feed",
				middleware.QueryToken(),
				middleware.AuthMiddleware(d.Auth),
				middleware.AdminMiddleware(),
				controllers.OrderFeed(d.Hub))
		}
	}
}
