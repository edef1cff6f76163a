package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/catalog"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/orders"
	"storefront/internal/paymob"
)

type Gateway interface {
	StartPayment(ctx context.Context, req paymob.PaymentRequest) (paymob.PaymentSession, error)
}

type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
}

type StockLedger interface {
	Decrement(ctx context.Context, productID primitive.ObjectID, quantity int) (int, error)
}

type PriceSource interface {
	Prices(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]catalog.Price, error)
}

type Publisher interface {
	Publish(ctx context.Context, eventType string, order *models.Order) error
}

type Deps struct {
	Gateway Gateway
	Orders  OrderStore
	Ledger  StockLedger
	// Prices is optional; without it the cart's unit prices are used.
	Prices  PriceSource
	Events  Publisher
	Pricing Pricing
}

type Service struct {
	gateway  Gateway
	orders   OrderStore
	ledger   StockLedger
	prices   PriceSource
	events   Publisher
	pricing  Pricing
	validate *validator.Validate
}

func NewService(d Deps) *Service {
	pub := d.Events
	if pub == nil {
		pub = events.Nop{}
	}
	if d.Pricing.Currency == "" {
		d.Pricing.Currency = "EGP"
	}
	return &Service{
		gateway:  d.Gateway,
		orders:   d.Orders,
		ledger:   d.Ledger,
		prices:   d.Prices,
		events:   pub,
		pricing:  d.Pricing,
		validate: newValidator(),
	}
}

type Result struct {
	OrderRef       string
	GatewayOrderID string
	PaymentMethod  models.PaymentMethod
	TotalAmount    float64
	Currency       string
	RedirectURL    string
}

// Checkout validates and prices the cart, then runs the payment plan for the
// chosen method. A *ValidationError or *paymob.GatewayError means no order
// was written.
func (s *Service) Checkout(ctx context.Context, req Request) (Result, error) {
	req.normalize()
	ids, err := req.validate(s.validate)
	if err != nil {
		return Result{}, err
	}

	q, err := s.price(ctx, &req, ids)
	if err != nil {
		return Result{}, err
	}

	orderRef := "ORD-" + uuid.NewString()
	plan, err := s.plan(ctx, &req, orderRef, q)
	if err != nil {
		return Result{}, err
	}

	// Once a plan exists the gateway may already hold an order for this
	// reference, so the writes below must not follow the caller's cancellation.
	ctx = context.WithoutCancel(ctx)

	order := s.buildOrder(&req, orderRef, q, plan)
	result := Result{
		OrderRef:       orderRef,
		GatewayOrderID: plan.gatewayOrderID(),
		PaymentMethod:  plan.Method(),
		TotalAmount:    order.TotalAmount,
		Currency:       order.Currency,
	}

	switch p := plan.(type) {
	case CardPlan:
		result.RedirectURL = p.RedirectURL
		if err := s.orders.Create(ctx, order); err != nil {
			// The customer already holds a payment session; the webhook for an
			// unknown order is acknowledged and the order can be re-created.
			log.WithError(err).WithFields(log.Fields{
				"orderId":        orderRef,
				"gatewayOrderId": p.GatewayOrderID,
			}).Error("[CHECKOUT] order persistence failed after gateway registration")
			return result, nil
		}
	case CODPlan:
		if err := s.orders.Create(ctx, order); err != nil {
			return Result{}, err
		}
		s.decrementStock(ctx, order)
	}

	log.WithFields(log.Fields{
		"orderId":        orderRef,
		"gatewayOrderId": order.GatewayOrderID,
		"method":         order.PaymentMethod,
		"total":          order.TotalAmount,
	}).Info("[CHECKOUT] order placed")

	if err := s.events.Publish(ctx, events.OrderPlaced, order); err != nil {
		log.WithError(err).WithField("orderId", orderRef).Warn("[CHECKOUT] publish order.placed failed")
	}
	return result, nil
}

func (s *Service) plan(ctx context.Context, req *Request, orderRef string, q quote) (PaymentPlan, error) {
	switch models.PaymentMethod(req.PaymentMethod) {
	case models.PaymentMethodCOD:
		return CODPlan{Reference: "COD-" + uuid.NewString(), Surcharge: q.surcharge}, nil
	case models.PaymentMethodCard:
		if s.gateway == nil {
			return nil, &paymob.GatewayError{Step: paymob.StepAuthenticate, Err: paymob.ErrNotConfigured}
		}
		session, err := s.gateway.StartPayment(ctx, s.paymentRequest(req, orderRef, q))
		if err != nil {
			var gwErr *paymob.GatewayError
			if !errors.As(err, &gwErr) {
				err = &paymob.GatewayError{Step: paymob.StepAuthenticate, Err: err}
			}
			log.WithError(err).WithField("orderId", orderRef).Warn("[CHECKOUT] payment handshake failed")
			return nil, err
		}
		return CardPlan{
			GatewayOrderID: session.GatewayOrderID,
			PaymentToken:   session.PaymentToken,
			RedirectURL:    session.RedirectURL,
		}, nil
	default:
		return nil, &ValidationError{Details: []string{"paymentMethod must be one of: card cod"}}
	}
}

func (s *Service) paymentRequest(req *Request, orderRef string, q quote) paymob.PaymentRequest {
	items := make([]paymob.Item, 0, len(q.items))
	for _, item := range q.items {
		name := item.Name
		if name == "" {
			name = item.ProductID.Hex()
		}
		items = append(items, paymob.Item{
			Name:        name,
			AmountCents: toCents(decimal.NewFromFloat(item.UnitPrice)),
			Description: name,
			Quantity:    item.Quantity,
		})
	}

	first, last := splitName(req.Customer.Name)
	return paymob.PaymentRequest{
		MerchantOrderID: orderRef,
		AmountCents:     q.totalCents(),
		Items:           items,
		Billing: paymob.BillingData{
			FirstName:   first,
			LastName:    last,
			Email:       req.Customer.Email,
			PhoneNumber: req.Customer.Phone,
			Street:      req.ShippingAddress.Street,
			City:        req.ShippingAddress.City,
			Country:     req.ShippingAddress.Country,
			PostalCode:  req.ShippingAddress.PostalCode,
		},
	}
}

func (s *Service) buildOrder(req *Request, orderRef string, q quote, plan PaymentPlan) *models.Order {
	orderStatus, paymentStatus := plan.initialStatus()
	order := &models.Order{
		OrderID: orderRef,
		UserID:  req.UserID,
		Customer: models.CustomerInfo{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		ShippingAddress: models.ShippingAddress{
			Street:     req.ShippingAddress.Street,
			City:       req.ShippingAddress.City,
			Country:    req.ShippingAddress.Country,
			PostalCode: req.ShippingAddress.PostalCode,
		},
		Items:          q.items,
		ShippingFee:    q.shipping.InexactFloat64(),
		Surcharge:      q.surcharge.InexactFloat64(),
		DesignFee:      q.design.InexactFloat64(),
		TotalAmount:    q.total.InexactFloat64(),
		Currency:       s.pricing.Currency,
		PaymentMethod:  plan.Method(),
		PaymentStatus:  paymentStatus,
		OrderStatus:    orderStatus,
		GatewayOrderID: plan.gatewayOrderID(),
	}
	if req.Design != nil {
		order.DesignAssetID = req.Design.AssetID
	}
	return order
}

// decrementStock applies the COD stock effect. Failures are logged only; the
// order stays confirmed.
func (s *Service) decrementStock(ctx context.Context, order *models.Order) {
	if s.ledger == nil {
		return
	}
	for _, item := range order.Items {
		if _, err := s.ledger.Decrement(ctx, item.ProductID, item.Quantity); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"orderId":   order.OrderID,
				"productId": item.ProductID.Hex(),
			}).Error("[CHECKOUT] stock decrement failed")
		}
	}
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

var _ OrderStore = (*orders.Repository)(nil)
