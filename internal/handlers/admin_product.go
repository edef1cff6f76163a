package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/inventory"
)

type Restocker interface {
	Restock(ctx context.Context, productID primitive.ObjectID, quantity int) (int, error)
}

type restockRequest struct {
	Quantity int `json:"quantity" binding:"required,gte=1"`
}

// RestockProduct is the only way stock goes up; cancellations never restock.
func RestockProduct(ledger Restocker) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/products/:id/restock"
		defer handlePanic(c, route)

		productID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var req restockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		stock, err := ledger.Restock(c.Request.Context(), productID, req.Quantity)
		if errors.Is(err, inventory.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[%s] product %s restocked by %d", route, productID.Hex(), req.Quantity)
		c.JSON(http.StatusOK, gin.H{"productId": productID.Hex(), "stock": stock})
	}
}
