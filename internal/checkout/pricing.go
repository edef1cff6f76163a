package checkout

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

type Pricing struct {
	Currency    string
	ShippingFee float64
	CODFee      float64
}

type quote struct {
	items     []models.OrderItem
	subtotal  decimal.Decimal
	shipping  decimal.Decimal
	surcharge decimal.Decimal
	design    decimal.Decimal
	total     decimal.Decimal
}

func (q quote) totalCents() int64 {
	return toCents(q.total)
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// price builds the order lines and the total. Catalog prices replace cart
// prices when a catalog is wired.
func (s *Service) price(ctx context.Context, req *Request, ids []primitive.ObjectID) (quote, error) {
	items := make([]models.OrderItem, len(req.Items))
	for i, line := range req.Items {
		items[i] = models.OrderItem{
			ProductID: ids[i],
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		}
	}

	if s.prices != nil {
		prices, err := s.prices.Prices(ctx, uniqueIDs(ids))
		if err != nil {
			return quote{}, fmt.Errorf("load catalog prices: %w", err)
		}
		var missing []string
		for i := range items {
			p, ok := prices[items[i].ProductID]
			if !ok {
				missing = append(missing, fmt.Sprintf("items[%d].productId is not available", i))
				continue
			}
			items[i].UnitPrice = p.UnitPrice
			if p.Name != "" {
				items[i].Name = p.Name
			}
		}
		if len(missing) > 0 {
			return quote{}, &ValidationError{Details: missing}
		}
	}

	q := quote{items: items, shipping: decimal.NewFromFloat(s.pricing.ShippingFee)}
	for _, item := range items {
		line := decimal.NewFromFloat(item.UnitPrice).Mul(decimal.NewFromInt(int64(item.Quantity)))
		q.subtotal = q.subtotal.Add(line)
	}
	if req.PaymentMethod == string(models.PaymentMethodCOD) {
		q.surcharge = decimal.NewFromFloat(s.pricing.CODFee)
	}
	if req.Design != nil {
		q.design = decimal.NewFromFloat(req.Design.PriceDelta)
	}
	q.total = q.subtotal.Add(q.shipping).Add(q.surcharge).Add(q.design).Round(2)
	return q, nil
}

func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
