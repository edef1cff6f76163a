package checkout

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LineItem struct {
	ProductID string  `json:"productId" validate:"required"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity" validate:"gte=1"`
	UnitPrice float64 `json:"unitPrice" validate:"gte=0"`
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

type Address struct {
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	Country    string `json:"country" validate:"required"`
	PostalCode string `json:"postalCode"`
}

// Design is the output of the design editor attached to an order.
type Design struct {
	AssetID    string  `json:"assetId"`
	PriceDelta float64 `json:"priceDelta" validate:"gte=0"`
}

// Request is a cart snapshot plus customer data. Any total the client
// computed is not part of it.
type Request struct {
	Items           []LineItem `json:"items" validate:"required,min=1,dive"`
	Customer        Customer   `json:"customer"`
	ShippingAddress Address    `json:"shippingAddress"`
	PaymentMethod   string     `json:"paymentMethod" validate:"required,oneof=card cod"`
	Design          *Design    `json:"design,omitempty"`
	UserID          string     `json:"-"`
}

// ValidationError reports bad checkout input. Nothing was written when it
// is returned.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Details, "; ")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (r *Request) normalize() {
	r.PaymentMethod = strings.ToLower(strings.TrimSpace(r.PaymentMethod))
	r.Customer.Name = strings.TrimSpace(r.Customer.Name)
	r.Customer.Email = strings.ToLower(strings.TrimSpace(r.Customer.Email))
	r.Customer.Phone = strings.TrimSpace(r.Customer.Phone)
	r.ShippingAddress.Street = strings.TrimSpace(r.ShippingAddress.Street)
	r.ShippingAddress.City = strings.TrimSpace(r.ShippingAddress.City)
	r.ShippingAddress.Country = strings.TrimSpace(r.ShippingAddress.Country)
	r.ShippingAddress.PostalCode = strings.TrimSpace(r.ShippingAddress.PostalCode)
	for i := range r.Items {
		r.Items[i].ProductID = strings.TrimSpace(r.Items[i].ProductID)
		r.Items[i].Name = strings.TrimSpace(r.Items[i].Name)
	}
	if r.Design != nil {
		r.Design.AssetID = strings.TrimSpace(r.Design.AssetID)
	}
}

// validate runs the struct rules and returns the parsed product ids in
// cart order.
func (r *Request) validate(v *validator.Validate) ([]primitive.ObjectID, error) {
	var details []string
	if err := v.Struct(r); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, err
		}
		for _, fe := range validationErrors {
			details = append(details, describe(fe))
		}
	}

	ids := make([]primitive.ObjectID, len(r.Items))
	for i, item := range r.Items {
		if item.ProductID == "" {
			continue
		}
		id, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			details = append(details, fmt.Sprintf("items[%d].productId is invalid", i))
			continue
		}
		ids[i] = id
	}

	if len(details) > 0 {
		return nil, &ValidationError{Details: details}
	}
	return ids, nil
}

func describe(fe validator.FieldError) string {
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
