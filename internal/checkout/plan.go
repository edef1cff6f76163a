package checkout

import (
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

// PaymentPlan is either a CardPlan or a CODPlan.
type PaymentPlan interface {
	Method() models.PaymentMethod
	gatewayOrderID() string
	initialStatus() (models.OrderStatus, models.PaymentStatus)
}

// CardPlan is a completed gateway handshake awaiting the customer.
type CardPlan struct {
	GatewayOrderID string
	PaymentToken   string
	RedirectURL    string
}

func (CardPlan) Method() models.PaymentMethod { return models.PaymentMethodCard }

func (p CardPlan) gatewayOrderID() string { return p.GatewayOrderID }

func (CardPlan) initialStatus() (models.OrderStatus, models.PaymentStatus) {
	return models.OrderStatusPending, models.PaymentStatusPending
}

// CODPlan is accepted without payment capture.
type CODPlan struct {
	Reference string
	Surcharge decimal.Decimal
}

func (CODPlan) Method() models.PaymentMethod { return models.PaymentMethodCOD }

func (p CODPlan) gatewayOrderID() string { return p.Reference }

func (CODPlan) initialStatus() (models.OrderStatus, models.PaymentStatus) {
	return models.OrderStatusConfirmed, models.PaymentStatusPending
}
