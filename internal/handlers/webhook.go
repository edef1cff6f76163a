package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"storefront/internal/paymob"
	"storefront/internal/webhook"
)

const maxWebhookBody = 1 << 20

type NotificationHandler interface {
	HandleNotification(ctx context.Context, raw []byte, signature string) (webhook.Ack, error)
}

// PaymobWebhook answers 401 for a bad signature and 200 for everything else.
func PaymobWebhook(rec NotificationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /webhooks/paymob"
		defer handlePanic(c, route)

		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}

		signature := c.GetHeader(paymob.SignatureHeader)
		if signature == "" {
			signature = c.Query("hmac")
		}

		// Reconciliation continues even if the gateway hangs up.
		ctx := context.WithoutCancel(c.Request.Context())
		ack, err := rec.HandleNotification(ctx, raw, signature)
		var sigErr *webhook.SignatureError
		if errors.As(err, &sigErr) {
			respondWithError(c, http.StatusUnauthorized, route, "invalid signature")
			return
		}
		if err != nil {
			log.Printf("[%s] unexpected error: %v", route, err)
		}

		log.WithFields(log.Fields{
			"outcome":        ack.Outcome,
			"gatewayOrderId": ack.GatewayOrderID,
		}).Debug("[WEBHOOK] notification acknowledged")
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
