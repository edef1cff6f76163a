package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"

	"storefront/internal/catalog"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/paymob"
)

type fakeOrderStore struct {
	mu     sync.Mutex
	orders []*models.Order
	err    error
}

func (f *fakeOrderStore) Create(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	order.ID = primitive.NewObjectID()
	f.orders = append(f.orders, order)
	return nil
}

type fakeLedger struct {
	mu    sync.Mutex
	calls map[primitive.ObjectID]int
	err   error
}

func (f *fakeLedger) Decrement(_ context.Context, productID primitive.ObjectID, quantity int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[primitive.ObjectID]int{}
	}
	f.calls[productID] += quantity
	return 0, f.err
}

type fakePrices struct {
	prices map[primitive.ObjectID]catalog.Price
	err    error
}

func (f *fakePrices) Prices(_ context.Context, _ []primitive.ObjectID) (map[primitive.ObjectID]catalog.Price, error) {
	return f.prices, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) Publish(_ context.Context, eventType string, _ *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

type fixture struct {
	gateway *MockGateway
	store   *fakeOrderStore
	ledger  *fakeLedger
	pub     *fakePublisher
	svc     *Service
}

func newFixture(t *testing.T, prices PriceSource) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		gateway: NewMockGateway(ctrl),
		store:   &fakeOrderStore{},
		ledger:  &fakeLedger{},
		pub:     &fakePublisher{},
	}
	f.svc = NewService(Deps{
		Gateway: f.gateway,
		Orders:  f.store,
		Ledger:  f.ledger,
		Prices:  prices,
		Events:  f.pub,
		Pricing: Pricing{Currency: "EGP", ShippingFee: 50, CODFee: 10},
	})
	return f
}

var productA = primitive.NewObjectID()

func sampleRequest(method string) Request {
	return Request{
		Items:           []LineItem{{ProductID: productA.Hex(), Name: "Mug", Quantity: 2, UnitPrice: 100}},
		Customer:        Customer{Name: "Sara Ali Hassan", Email: "Sara@Example.com ", Phone: "01000000000"},
		ShippingAddress: Address{Street: "1 Nile St", City: "Cairo", Country: "EG", PostalCode: "11511"},
		PaymentMethod:   method,
		UserID:          "user-1",
	}
}

func TestCheckoutCODConfirmsWithoutGateway(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Checkout(context.Background(), sampleRequest("cod"))
	require.NoError(t, err)

	assert.Equal(t, 260.0, res.TotalAmount)
	assert.Empty(t, res.RedirectURL)
	assert.True(t, strings.HasPrefix(res.OrderRef, "ORD-"))
	assert.True(t, strings.HasPrefix(res.GatewayOrderID, "COD-"))
	assert.Equal(t, models.PaymentMethodCOD, res.PaymentMethod)

	require.Len(t, f.store.orders, 1)
	order := f.store.orders[0]
	assert.Equal(t, models.OrderStatusConfirmed, order.OrderStatus)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, 260.0, order.TotalAmount)
	assert.Equal(t, 50.0, order.ShippingFee)
	assert.Equal(t, 10.0, order.Surcharge)
	assert.Equal(t, res.GatewayOrderID, order.GatewayOrderID)
	assert.Equal(t, "sara@example.com", order.Customer.Email)
	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, "EGP", order.Currency)

	assert.Equal(t, 2, f.ledger.calls[productA])
	assert.Equal(t, []string{events.OrderPlaced}, f.pub.events)
}

func TestCheckoutCardCreatesPendingOrder(t *testing.T) {
	f := newFixture(t, nil)

	var sent paymob.PaymentRequest
	f.gateway.EXPECT().StartPayment(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req paymob.PaymentRequest) (paymob.PaymentSession, error) {
			sent = req
			return paymob.PaymentSession{
				GatewayOrderID: "987654",
				PaymentToken:   "pay-token",
				RedirectURL:    "https://accept.paymob.com/api/acceptance/iframes/77?payment_token=pay-token",
			}, nil
		}).Times(1)

	res, err := f.svc.Checkout(context.Background(), sampleRequest("card"))
	require.NoError(t, err)

	assert.Equal(t, 250.0, res.TotalAmount)
	assert.Equal(t, "987654", res.GatewayOrderID)
	assert.Contains(t, res.RedirectURL, "payment_token=pay-token")

	assert.Equal(t, int64(25000), sent.AmountCents)
	assert.Equal(t, res.OrderRef, sent.MerchantOrderID)
	require.Len(t, sent.Items, 1)
	assert.Equal(t, int64(10000), sent.Items[0].AmountCents)
	assert.Equal(t, "Sara", sent.Billing.FirstName)
	assert.Equal(t, "Ali Hassan", sent.Billing.LastName)

	require.Len(t, f.store.orders, 1)
	order := f.store.orders[0]
	assert.Equal(t, models.OrderStatusPending, order.OrderStatus)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "987654", order.GatewayOrderID)
	assert.Zero(t, order.Surcharge)

	assert.Empty(t, f.ledger.calls)
	assert.Equal(t, []string{events.OrderPlaced}, f.pub.events)
}

func TestCheckoutCardGatewayErrorLeavesNoOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.gateway.EXPECT().StartPayment(gomock.Any(), gomock.Any()).
		Return(paymob.PaymentSession{}, &paymob.GatewayError{Step: paymob.StepRegisterOrder, StatusCode: 500, Err: errors.New("boom")})

	_, err := f.svc.Checkout(context.Background(), sampleRequest("card"))

	var gwErr *paymob.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, paymob.StepRegisterOrder, gwErr.Step)
	assert.Empty(t, f.store.orders)
	assert.Empty(t, f.ledger.calls)
	assert.Empty(t, f.pub.events)
}

func TestCheckoutCardWrapsUntypedGatewayFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.gateway.EXPECT().StartPayment(gomock.Any(), gomock.Any()).
		Return(paymob.PaymentSession{}, context.DeadlineExceeded)

	_, err := f.svc.Checkout(context.Background(), sampleRequest("card"))

	var gwErr *paymob.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.True(t, gwErr.Timeout())
	assert.Empty(t, f.store.orders)
}

func TestCheckoutCardWithoutGatewayIsUnavailable(t *testing.T) {
	svc := NewService(Deps{Orders: &fakeOrderStore{}, Pricing: Pricing{ShippingFee: 50}})

	_, err := svc.Checkout(context.Background(), sampleRequest("card"))
	assert.ErrorIs(t, err, paymob.ErrNotConfigured)
}

func TestCheckoutCardPersistenceFailureStillRedirects(t *testing.T) {
	f := newFixture(t, nil)
	f.store.err = errors.New("mongo down")
	f.gateway.EXPECT().StartPayment(gomock.Any(), gomock.Any()).
		Return(paymob.PaymentSession{GatewayOrderID: "55", RedirectURL: "https://pay.example/55"}, nil)

	res, err := f.svc.Checkout(context.Background(), sampleRequest("card"))
	require.NoError(t, err)

	assert.Equal(t, "https://pay.example/55", res.RedirectURL)
	assert.Equal(t, "55", res.GatewayOrderID)
	assert.Empty(t, f.pub.events)
}

func TestCheckoutCardPersistsAfterClientDisconnect(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.gateway.EXPECT().StartPayment(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, paymob.PaymentRequest) (paymob.PaymentSession, error) {
			cancel()
			return paymob.PaymentSession{GatewayOrderID: "77", RedirectURL: "https://pay.example/77"}, nil
		}).Times(1)

	res, err := f.svc.Checkout(ctx, sampleRequest("card"))
	require.NoError(t, err)

	require.Len(t, f.store.orders, 1)
	assert.Equal(t, "77", f.store.orders[0].GatewayOrderID)
	assert.Equal(t, res.OrderRef, f.store.orders[0].OrderID)
	assert.Equal(t, []string{events.OrderPlaced}, f.pub.events)
}

func TestCheckoutCODPersistenceFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.store.err = errors.New("mongo down")

	_, err := f.svc.Checkout(context.Background(), sampleRequest("cod"))
	require.Error(t, err)
	assert.Empty(t, f.ledger.calls)
	assert.Empty(t, f.pub.events)
}

func TestCheckoutCODLedgerErrorDoesNotFail(t *testing.T) {
	f := newFixture(t, nil)
	f.ledger.err = errors.New("product not found")

	res, err := f.svc.Checkout(context.Background(), sampleRequest("cod"))
	require.NoError(t, err)
	assert.Equal(t, 260.0, res.TotalAmount)
	require.Len(t, f.store.orders, 1)
	assert.Equal(t, models.OrderStatusConfirmed, f.store.orders[0].OrderStatus)
}

func TestCheckoutDesignDelta(t *testing.T) {
	f := newFixture(t, nil)
	req := sampleRequest("cod")
	req.Design = &Design{AssetID: " designs/abc.png ", PriceDelta: 25.5}

	res, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 285.5, res.TotalAmount)
	require.Len(t, f.store.orders, 1)
	assert.Equal(t, "designs/abc.png", f.store.orders[0].DesignAssetID)
	assert.Equal(t, 25.5, f.store.orders[0].DesignFee)
}

func TestCheckoutUsesCatalogPrices(t *testing.T) {
	prices := &fakePrices{prices: map[primitive.ObjectID]catalog.Price{
		productA: {Name: "Ceramic Mug", UnitPrice: 80},
	}}
	f := newFixture(t, prices)

	req := sampleRequest("cod")
	req.Items[0].UnitPrice = 1

	res, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 220.0, res.TotalAmount)
	require.Len(t, f.store.orders, 1)
	assert.Equal(t, "Ceramic Mug", f.store.orders[0].Items[0].Name)
	assert.Equal(t, 80.0, f.store.orders[0].Items[0].UnitPrice)
}

func TestCheckoutUnknownCatalogProduct(t *testing.T) {
	f := newFixture(t, &fakePrices{prices: map[primitive.ObjectID]catalog.Price{}})

	_, err := f.svc.Checkout(context.Background(), sampleRequest("cod"))

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, []string{"items[0].productId is not available"}, vErr.Details)
	assert.Empty(t, f.store.orders)
}

func TestCheckoutCatalogFailure(t *testing.T) {
	f := newFixture(t, &fakePrices{err: errors.New("timeout")})

	_, err := f.svc.Checkout(context.Background(), sampleRequest("cod"))
	require.Error(t, err)

	var vErr *ValidationError
	assert.False(t, errors.As(err, &vErr))
	assert.Empty(t, f.store.orders)
}

func TestCheckoutValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(r *Request)
		detail string
	}{
		{"empty cart", func(r *Request) { r.Items = []LineItem{} }, "items must contain at least 1 item(s)"},
		{"nil cart", func(r *Request) { r.Items = nil }, "items is required"},
		{"zero quantity", func(r *Request) { r.Items[0].Quantity = 0 }, "items[0].quantity must be >= 1"},
		{"negative price", func(r *Request) { r.Items[0].UnitPrice = -1 }, "items[0].unitPrice must be >= 0"},
		{"bad product id", func(r *Request) { r.Items[0].ProductID = "abc" }, "items[0].productId is invalid"},
		{"missing product id", func(r *Request) { r.Items[0].ProductID = "  " }, "items[0].productId is required"},
		{"bad email", func(r *Request) { r.Customer.Email = "not-an-email" }, "customer.email must be a valid email"},
		{"missing phone", func(r *Request) { r.Customer.Phone = " " }, "customer.phone is required"},
		{"missing street", func(r *Request) { r.ShippingAddress.Street = "" }, "shippingAddress.street is required"},
		{"missing city", func(r *Request) { r.ShippingAddress.City = "" }, "shippingAddress.city is required"},
		{"missing country", func(r *Request) { r.ShippingAddress.Country = "" }, "shippingAddress.country is required"},
		{"bad method", func(r *Request) { r.PaymentMethod = "paypal" }, "paymentMethod must be one of: card cod"},
		{"negative design delta", func(r *Request) { r.Design = &Design{PriceDelta: -5} }, "design.priceDelta must be >= 0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			req := sampleRequest("cod")
			tc.mutate(&req)

			_, err := f.svc.Checkout(context.Background(), req)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Contains(t, vErr.Details, tc.detail)
			assert.Empty(t, f.store.orders)
			assert.Empty(t, f.ledger.calls)
		})
	}
}

func TestCheckoutMethodIsCaseInsensitive(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Checkout(context.Background(), sampleRequest(" COD "))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCOD, res.PaymentMethod)
}
