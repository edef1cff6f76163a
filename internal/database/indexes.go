package database

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureOrderIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("orders").Indexes()

	models := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "gatewayOrderId", Value: 1}},
			Options: options.Index().
				SetName("gatewayOrderId_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"gatewayOrderId": bson.M{"$type": "string"},
				}),
		},
		{
			Keys:    bson.D{{Key: "orderId", Value: 1}},
			Options: options.Index().SetName("orderId_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("userId_createdAt"),
		},
	}

	log.Println("EnsureOrderIndexes: creating order indexes")
	names, err := indexes.CreateMany(ctx, models)
	if err != nil {
		log.Println("EnsureOrderIndexes: index error:", err)
		return err
	}
	log.Println("EnsureOrderIndexes: indexes ready:", names)
	return nil
}
