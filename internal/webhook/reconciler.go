package webhook

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/orders"
	"storefront/internal/paymob"
	"storefront/internal/redisx"
)

type OrderStore interface {
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	TransitionPending(ctx context.Context, gatewayOrderID string, update models.StatusUpdate) (*models.Order, error)
}

type StockLedger interface {
	Decrement(ctx context.Context, productID primitive.ObjectID, quantity int) (int, error)
}

type Claims interface {
	Claim(ctx context.Context, transactionID string) (bool, error)
	Release(ctx context.Context, transactionID string) error
}

type Publisher interface {
	Publish(ctx context.Context, eventType string, order *models.Order) error
}

type Outcome string

const (
	OutcomeProcessed    Outcome = "processed"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeNotPending   Outcome = "not_pending"
	OutcomeUnknownOrder Outcome = "unknown_order"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeMalformed    Outcome = "malformed"
	OutcomeError        Outcome = "error"
)

// Ack describes what happened to an acknowledged notification. Err holds
// the absorbed error, if any.
type Ack struct {
	Outcome        Outcome
	GatewayOrderID string
	TransactionID  string
	OrderID        string
	OrderStatus    models.OrderStatus
	Err            error
}

type Deps struct {
	Orders OrderStore
	Ledger StockLedger
	Claims Claims
	Events Publisher

	Secret           string
	RequireSignature bool // reject unsigned notifications when Secret is set
}

type Reconciler struct {
	orders           OrderStore
	ledger           StockLedger
	claims           Claims
	events           Publisher
	secret           []byte
	requireSignature bool
}

func NewReconciler(d Deps) *Reconciler {
	r := &Reconciler{
		orders:           d.Orders,
		ledger:           d.Ledger,
		claims:           d.Claims,
		events:           d.Events,
		requireSignature: d.RequireSignature,
	}
	if d.Secret != "" {
		r.secret = []byte(d.Secret)
	} else {
		log.Warn("[WEBHOOK] no HMAC secret configured, signature verification disabled")
	}
	if r.claims == nil {
		r.claims = redisx.NopClaims{}
	}
	if r.events == nil {
		r.events = events.Nop{}
	}
	return r
}

// HandleNotification applies one gateway callback. Every outcome except a
// bad signature is acknowledged so the gateway does not retry business
// failures.
func (r *Reconciler) HandleNotification(ctx context.Context, raw []byte, signature string) (Ack, error) {
	if err := r.verify(raw, signature); err != nil {
		log.WithError(err).Warn("[WEBHOOK] rejected notification")
		return Ack{}, err
	}

	n, err := paymob.ParseNotification(raw)
	if err != nil {
		log.WithError(err).Warn("[WEBHOOK] malformed notification acknowledged")
		return Ack{Outcome: OutcomeMalformed, Err: err}, nil
	}

	ack := Ack{
		GatewayOrderID: string(n.Obj.Order.ID),
		TransactionID:  string(n.Obj.ID),
	}
	entry := log.WithFields(log.Fields{
		"gatewayOrderId": ack.GatewayOrderID,
		"transactionId":  ack.TransactionID,
		"success":        n.Obj.Success,
	})

	if n.Obj.Pending {
		entry.Info("[WEBHOOK] pending transaction ignored")
		ack.Outcome = OutcomeIgnored
		return ack, nil
	}

	// The claim only labels repeats; the order state decides whether work is
	// left, so a claim that outlived a failed attempt cannot block a retry.
	claimed, seen := false, false
	if ack.TransactionID != "" {
		ok, err := r.claims.Claim(ctx, ack.TransactionID)
		switch {
		case err != nil:
			entry.WithError(err).Warn("[WEBHOOK] transaction claim unavailable, relying on order state")
		case !ok:
			seen = true
		default:
			claimed = true
		}
	}
	settled := func() Outcome {
		if seen {
			return OutcomeDuplicate
		}
		return OutcomeNotPending
	}
	release := func() {
		if !claimed {
			return
		}
		if err := r.claims.Release(ctx, ack.TransactionID); err != nil {
			entry.WithError(err).Warn("[WEBHOOK] release transaction claim failed")
		}
	}

	order, err := r.orders.FindByGatewayOrderID(ctx, ack.GatewayOrderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		release()
		ack.Outcome = OutcomeUnknownOrder
		ack.Err = &NotFoundError{GatewayOrderID: ack.GatewayOrderID}
		entry.WithError(ack.Err).Warn("[WEBHOOK] unknown order acknowledged")
		return ack, nil
	}
	if err != nil {
		release()
		ack.Outcome = OutcomeError
		ack.Err = err
		entry.WithError(err).Error("[WEBHOOK] order lookup failed")
		return ack, nil
	}
	ack.OrderID = order.OrderID
	ack.OrderStatus = order.OrderStatus

	if order.OrderStatus != models.OrderStatusPending {
		entry.WithField("orderStatus", order.OrderStatus).Info("[WEBHOOK] order already settled")
		ack.Outcome = settled()
		return ack, nil
	}
	if seen {
		entry.Warn("[WEBHOOK] transaction claimed earlier but order still pending, reconciling")
	}

	update := models.StatusUpdate{
		OrderStatus:   models.OrderStatusCancelled,
		PaymentStatus: models.PaymentStatusFailed,
	}
	if n.Obj.Success {
		update = models.StatusUpdate{
			OrderStatus:          models.OrderStatusProcessing,
			PaymentStatus:        models.PaymentStatusCompleted,
			GatewayTransactionID: ack.TransactionID,
		}
	}

	updated, err := r.orders.TransitionPending(ctx, ack.GatewayOrderID, update)
	switch {
	case errors.Is(err, orders.ErrNotPending):
		entry.Info("[WEBHOOK] lost transition race, acknowledged")
		ack.Outcome = settled()
		return ack, nil
	case err != nil:
		release()
		ack.Outcome = OutcomeError
		ack.Err = err
		entry.WithError(err).Error("[WEBHOOK] status transition failed")
		return ack, nil
	}
	ack.OrderStatus = updated.OrderStatus
	ack.Outcome = OutcomeProcessed

	eventType := events.PaymentFailed
	if n.Obj.Success {
		eventType = events.PaymentCompleted
		ack.Err = r.decrementStock(ctx, updated)
	}

	entry.WithFields(log.Fields{
		"orderId":     updated.OrderID,
		"orderStatus": updated.OrderStatus,
	}).Info("[WEBHOOK] order reconciled")

	if err := r.events.Publish(ctx, eventType, updated); err != nil {
		entry.WithError(err).Warn("[WEBHOOK] publish event failed")
	}
	return ack, nil
}

func (r *Reconciler) verify(raw []byte, signature string) error {
	if len(r.secret) == 0 {
		return nil
	}
	if signature == "" {
		if r.requireSignature {
			return &SignatureError{Reason: "missing signature"}
		}
		log.Warn("[WEBHOOK] unsigned notification accepted")
		return nil
	}
	if !paymob.VerifySignature(r.secret, raw, signature) {
		return &SignatureError{Reason: "signature mismatch"}
	}
	return nil
}

// decrementStock runs once per order, right after the winning transition.
// Ledger failures do not undo the transition.
func (r *Reconciler) decrementStock(ctx context.Context, order *models.Order) error {
	if r.ledger == nil {
		return nil
	}
	var errs []error
	for _, item := range order.Items {
		if _, err := r.ledger.Decrement(ctx, item.ProductID, item.Quantity); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"orderId":   order.OrderID,
				"productId": item.ProductID.Hex(),
			}).Error("[WEBHOOK] stock decrement failed")
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("stock not fully decremented: %w", errors.Join(errs...))
	}
	return nil
}
