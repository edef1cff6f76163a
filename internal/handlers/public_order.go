package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"storefront/internal/checkout"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/orders"
	"storefront/internal/paymob"
)

type CheckoutService interface {
	Checkout(ctx context.Context, req checkout.Request) (checkout.Result, error)
}

type OrderReader interface {
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	FindForUser(ctx context.Context, orderID, userID string) (*models.Order, error)
}

/* =========================
   CHECKOUT
========================= */

func Checkout(svc CheckoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /checkout"
		defer handlePanic(c, route)

		var req checkout.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		req.UserID = middleware.UserID(c)

		res, err := svc.Checkout(c.Request.Context(), req)
		var validationErr *checkout.ValidationError
		var gatewayErr *paymob.GatewayError
		switch {
		case errors.As(err, &validationErr):
			respondDetails(c, validationErr.Details)
			return
		case errors.As(err, &gatewayErr):
			log.Printf("[%s] gateway failure: %v", route, gatewayErr)
			respondWithError(c, http.StatusBadGateway, route, "payment gateway unavailable")
			return
		case err != nil:
			log.Printf("[%s] checkout failed: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "could not place order")
			return
		}

		if req.UserID != "" {
			log.Println("[ORDER] [INFO] order created for user:", req.UserID)
		} else {
			log.Println("[ORDER] [INFO] guest order created")
		}

		body := gin.H{
			"orderRef":       res.OrderRef,
			"gatewayOrderId": res.GatewayOrderID,
			"paymentMethod":  res.PaymentMethod,
			"totalAmount":    res.TotalAmount,
			"currency":       res.Currency,
		}
		if res.RedirectURL != "" {
			body["redirectUrl"] = res.RedirectURL
		}
		c.JSON(http.StatusCreated, body)
	}
}

/* =========================
   MY ORDERS
========================= */

func GetMyOrders(store OrderReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, route)

		list, err := store.ListByUser(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "orders could not be fetched")
			return
		}

		c.JSON(http.StatusOK, list)
	}
}

func GetMyOrder(store OrderReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:orderRef"
		defer handlePanic(c, route)

		order, err := store.FindForUser(c.Request.Context(), c.Param("orderRef"), middleware.UserID(c))
		if errors.Is(err, orders.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, order)
	}
}
