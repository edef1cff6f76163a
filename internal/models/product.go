package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product carries the catalog fields the checkout and the stock ledger read.
// The rest of the catalog document is owned by the CMS.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Price       float64            `bson:"price" json:"price"`
	SaleEnabled bool               `bson:"saleEnabled" json:"saleEnabled"`
	SalePrice   float64            `bson:"salePrice" json:"salePrice"`
	Stock       int                `bson:"stock" json:"stock"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	IsDeleted   bool               `bson:"isDeleted" json:"isDeleted,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
