package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

const (
	collectionName = "orders"
	queryTimeout   = 5 * time.Second
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrNotPending    = errors.New("order is not pending")
	ErrAlreadyExists = errors.New("order already exists")
)

// Repository stores orders in MongoDB. Status changes go through
// TransitionPending only.
type Repository struct {
	coll *mongo.Collection
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{coll: db.Collection(collectionName)}
}

// Create inserts the order and sets its ID. A second insert with the same
// orderId or gatewayOrderId returns ErrAlreadyExists.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	res, err := r.coll.InsertOne(ctx, order)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = id
	}
	return nil
}

func (r *Repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"gatewayOrderId": gatewayOrderID})
}

// FindForUser returns the order only when it belongs to userID.
func (r *Repository) FindForUser(ctx context.Context, orderID, userID string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"orderId": orderID, "userId": userID})
}

func (r *Repository) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var order models.Order
	err := r.coll.FindOne(ctx, filter).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &order, nil
}

// TransitionPending moves an order out of pending in a single conditional
// update and returns the updated document. ErrNotPending means another writer
// got there first or the order was never pending.
func (r *Repository) TransitionPending(ctx context.Context, gatewayOrderID string, update models.StatusUpdate) (*models.Order, error) {
	if !models.CanTransition(models.OrderStatusPending, update.OrderStatus) {
		return nil, fmt.Errorf("invalid transition pending -> %s", update.OrderStatus)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{
		"orderStatus":   update.OrderStatus,
		"paymentStatus": update.PaymentStatus,
		"updatedAt":     time.Now().UTC(),
	}
	if update.GatewayTransactionID != "" {
		set["gatewayTransactionId"] = update.GatewayTransactionID
	}

	filter := bson.M{
		"gatewayOrderId": gatewayOrderID,
		"orderStatus":    models.OrderStatusPending,
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order models.Order
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("transition order: %w", err)
	}
	return &order, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

// List returns one page of all orders, newest first, and the total count.
func (r *Repository) List(ctx context.Context, page, limit int64) ([]models.Order, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	total, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	opts := options.Find().
		SetSkip((page - 1) * limit).
		SetLimit(limit).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, fmt.Errorf("decode orders: %w", err)
	}
	return orders, total, nil
}

func (r *Repository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrOrderNotFound
	}
	return nil
}
