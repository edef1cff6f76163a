package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"storefront/internal/models"
)

const (
	OrderPlaced      = "order.placed"
	PaymentCompleted = "order.payment.completed"
	PaymentFailed    = "order.payment.failed"
)

// Envelope is the message body written to Kafka for every order event.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderPayload struct {
	OrderID              string    `json:"order_id"`
	GatewayOrderID       string    `json:"gateway_order_id"`
	GatewayTransactionID string    `json:"gateway_transaction_id,omitempty"`
	UserID               string    `json:"user_id,omitempty"`
	PaymentMethod        string    `json:"payment_method"`
	PaymentStatus        string    `json:"payment_status"`
	OrderStatus          string    `json:"order_status"`
	TotalAmount          float64   `json:"total_amount"`
	Currency             string    `json:"currency"`
	Items                []ItemQty `json:"items"`
}

func NewEnvelope(producer, eventType string, order *models.Order) (Envelope, error) {
	items := make([]ItemQty, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, ItemQty{ProductID: item.ProductID.Hex(), Qty: item.Quantity})
	}

	payload, err := json.Marshal(OrderPayload{
		OrderID:              order.OrderID,
		GatewayOrderID:       order.GatewayOrderID,
		GatewayTransactionID: order.GatewayTransactionID,
		UserID:               order.UserID,
		PaymentMethod:        string(order.PaymentMethod),
		PaymentStatus:        string(order.PaymentStatus),
		OrderStatus:          string(order.OrderStatus),
		TotalAmount:          order.TotalAmount,
		Currency:             order.Currency,
		Items:                items,
	})
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: order.OrderID,
		Payload:       payload,
	}, nil
}
