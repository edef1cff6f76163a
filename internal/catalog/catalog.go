package catalog

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// Price is the server-side price of a product at checkout time.
type Price struct {
	Name      string
	UnitPrice float64
}

// Catalog reads product prices from the products collection. It never writes.
type Catalog struct {
	coll *mongo.Collection
}

func New(db *mongo.Database) *Catalog {
	return &Catalog{coll: db.Collection("products")}
}

// Prices returns the effective price of every active product among ids.
// Missing, inactive and deleted products are absent from the result.
func (c *Catalog) Prices(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]Price, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"_id":       bson.M{"$in": ids},
		"isActive":  bson.M{"$ne": false},
		"isDeleted": bson.M{"$ne": true},
	}
	// stock is left out: legacy documents store it with mixed types.
	opts := options.Find().SetProjection(bson.M{"name": 1, "price": 1, "saleEnabled": 1, "salePrice": 1})
	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	prices := make(map[primitive.ObjectID]Price, len(products))
	for _, p := range products {
		prices[p.ID] = Price{
			Name:      p.Name,
			UnitPrice: effectiveProductPrice(p.Price, p.SaleEnabled, p.SalePrice),
		}
	}
	return prices, nil
}
