package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodCOD  PaymentMethod = "cod"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCODPending PaymentStatus = "cod_pending"
)

// OrderItem represents a single product entry within an order. UnitPrice is
// captured at checkout and never recomputed from the catalog.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	UnitPrice float64            `bson:"unitPrice" json:"unitPrice"`
}

// Order defines the persisted order document.
type Order struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID              string             `bson:"orderId" json:"orderId"`
	UserID               string             `bson:"userId,omitempty" json:"userId,omitempty"`
	Customer             CustomerInfo       `bson:"customer" json:"customer"`
	ShippingAddress      ShippingAddress    `bson:"shippingAddress" json:"shippingAddress"`
	Items                []OrderItem        `bson:"items" json:"items"`
	ShippingFee          float64            `bson:"shippingFee" json:"shippingFee"`
	Surcharge            float64            `bson:"surcharge" json:"surcharge"`
	DesignFee            float64            `bson:"designFee" json:"designFee"`
	TotalAmount          float64            `bson:"totalAmount" json:"totalAmount"`
	Currency             string             `bson:"currency" json:"currency"`
	PaymentMethod        PaymentMethod      `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus        PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	OrderStatus          OrderStatus        `bson:"orderStatus" json:"orderStatus"`
	GatewayOrderID       string             `bson:"gatewayOrderId" json:"gatewayOrderId"`
	GatewayTransactionID string             `bson:"gatewayTransactionId,omitempty" json:"gatewayTransactionId,omitempty"`
	DesignAssetID        string             `bson:"designAssetId,omitempty" json:"designAssetId,omitempty"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// StatusUpdate is the patch applied when an order leaves the pending state.
type StatusUpdate struct {
	OrderStatus          OrderStatus
	PaymentStatus        PaymentStatus
	GatewayTransactionID string
}
