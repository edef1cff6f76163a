package handlers

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/middleware"
)

type OrderStore interface {
	OrderReader
	OrderAdmin
}

type Services struct {
	Ping     Pinger
	Checkout CheckoutService
	Orders   OrderStore
	Webhook  NotificationHandler
	Stock    Restocker
}

// RegisterRoutes mounts the public, customer and admin surfaces on r.
func RegisterRoutes(r gin.IRouter, jwtSecret string, s Services) {
	r.GET("/healthz", Healthz(s.Ping))

	r.POST("/checkout", middleware.OptionalUserAuth(jwtSecret), Checkout(s.Checkout))
	r.POST("/webhooks/paymob", PaymobWebhook(s.Webhook))

	user := r.Group("/orders")
	user.Use(middleware.UserAuth(jwtSecret))
	{
		user.GET("", GetMyOrders(s.Orders))
		user.GET("/:orderRef", GetMyOrder(s.Orders))
	}

	admin := r.Group("/admin/api")
	admin.Use(middleware.AdminAuth(jwtSecret))
	{
		admin.GET("/orders", GetAllOrders(s.Orders))
		admin.DELETE("/orders/:id", DeleteOrder(s.Orders))

		admin.POST("/products/:id/restock", RestockProduct(s.Stock))
	}
}
