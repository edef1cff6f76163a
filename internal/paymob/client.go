package paymob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	authPath       = "/api/auth/tokens"
	ordersPath     = "/api/ecommerce/orders"
	paymentKeyPath = "/api/acceptance/payment_keys"
	iframePath     = "/api/acceptance/iframes/"

	notAvailable = "NA"
)

type Config struct {
	BaseURL       string
	APIKey        string
	IntegrationID string
	IframeID      string
	Currency      string
	Timeout       time.Duration
	PaymentKeyTTL time.Duration
}

// Item is one line of the order registered with the gateway.
type Item struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

type BillingData struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Street      string
	City        string
	Country     string
	PostalCode  string
}

type PaymentRequest struct {
	MerchantOrderID string
	AmountCents     int64
	Items           []Item
	Billing         BillingData
}

// PaymentSession is the outcome of a completed handshake.
type PaymentSession struct {
	GatewayOrderID string
	PaymentToken   string
	RedirectURL    string
}

// Client talks to the Paymob Accept API. It never retries; callers decide
// whether to run the whole handshake again.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.PaymentKeyTTL <= 0 {
		cfg.PaymentKeyTTL = time.Hour
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.APIKey != "" && c.cfg.IntegrationID != "" && c.cfg.IframeID != ""
}

// StartPayment runs authenticate, register order and payment key in sequence.
func (c *Client) StartPayment(ctx context.Context, req PaymentRequest) (PaymentSession, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return PaymentSession{}, err
	}

	gatewayOrderID, err := c.RegisterOrder(ctx, token, req.AmountCents, req.Items, req.MerchantOrderID)
	if err != nil {
		return PaymentSession{}, err
	}

	paymentToken, err := c.MintPaymentKey(ctx, token, gatewayOrderID, req.AmountCents, req.Billing)
	if err != nil {
		return PaymentSession{}, err
	}

	log.WithFields(log.Fields{
		"gatewayOrderId":  gatewayOrderID,
		"merchantOrderId": req.MerchantOrderID,
		"amountCents":     req.AmountCents,
	}).Info("[PAYMOB] payment session created")

	return PaymentSession{
		GatewayOrderID: gatewayOrderID,
		PaymentToken:   paymentToken,
		RedirectURL:    c.PaymentURL(paymentToken),
	}, nil
}

func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if !c.configured() {
		return "", &GatewayError{Step: StepAuthenticate, Err: ErrNotConfigured}
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, StepAuthenticate, authPath, map[string]string{"api_key": c.cfg.APIKey}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", &GatewayError{Step: StepAuthenticate, Err: errors.New("empty auth token")}
	}
	return resp.Token, nil
}

func (c *Client) RegisterOrder(ctx context.Context, authToken string, amountCents int64, items []Item, merchantOrderID string) (string, error) {
	body := struct {
		AuthToken       string `json:"auth_token"`
		DeliveryNeeded  string `json:"delivery_needed"`
		AmountCents     int64  `json:"amount_cents"`
		Currency        string `json:"currency"`
		MerchantOrderID string `json:"merchant_order_id,omitempty"`
		Items           []Item `json:"items"`
	}{
		AuthToken:       authToken,
		DeliveryNeeded:  "true",
		AmountCents:     amountCents,
		Currency:        c.cfg.Currency,
		MerchantOrderID: merchantOrderID,
		Items:           items,
	}

	var resp struct {
		ID ID `json:"id"`
	}
	if err := c.post(ctx, StepRegisterOrder, ordersPath, body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &GatewayError{Step: StepRegisterOrder, Err: errors.New("empty order id")}
	}
	return string(resp.ID), nil
}

func (c *Client) MintPaymentKey(ctx context.Context, authToken, gatewayOrderID string, amountCents int64, billing BillingData) (string, error) {
	body := struct {
		AuthToken     string            `json:"auth_token"`
		AmountCents   int64             `json:"amount_cents"`
		Expiration    int64             `json:"expiration"`
		OrderID       ID                `json:"order_id"`
		BillingData   map[string]string `json:"billing_data"`
		Currency      string            `json:"currency"`
		IntegrationID ID                `json:"integration_id"`
	}{
		AuthToken:     authToken,
		AmountCents:   amountCents,
		Expiration:    int64(c.cfg.PaymentKeyTTL / time.Second),
		OrderID:       ID(gatewayOrderID),
		BillingData:   billing.wire(),
		Currency:      c.cfg.Currency,
		IntegrationID: ID(c.cfg.IntegrationID),
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, StepPaymentKey, paymentKeyPath, body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", &GatewayError{Step: StepPaymentKey, Err: errors.New("empty payment token")}
	}
	return resp.Token, nil
}

// PaymentURL is the hosted iframe the customer is redirected to.
func (c *Client) PaymentURL(paymentToken string) string {
	return c.cfg.BaseURL + iframePath + url.PathEscape(c.cfg.IframeID) + "?payment_token=" + url.QueryEscape(paymentToken)
}

func (c *Client) post(ctx context.Context, step Step, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &GatewayError{Step: step, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &GatewayError{Step: step, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &GatewayError{Step: step, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &GatewayError{Step: step, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.WithFields(log.Fields{
			"step":   step,
			"status": resp.StatusCode,
		}).Warn("[PAYMOB] gateway rejected request")
		return &GatewayError{Step: step, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", truncate(string(data), 200))}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &GatewayError{Step: step, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (b BillingData) wire() map[string]string {
	return map[string]string{
		"first_name":      orNA(b.FirstName),
		"last_name":       orNA(b.LastName),
		"email":           orNA(b.Email),
		"phone_number":    orNA(b.PhoneNumber),
		"street":          orNA(b.Street),
		"city":            orNA(b.City),
		"country":         orNA(b.Country),
		"postal_code":     orNA(b.PostalCode),
		"apartment":       notAvailable,
		"floor":           notAvailable,
		"building":        notAvailable,
		"state":           notAvailable,
		"shipping_method": "PKG",
	}
}

func orNA(value string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return notAvailable
}

func truncate(value string, max int) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) <= max {
		return trimmed
	}
	return trimmed[:max] + "..."
}
