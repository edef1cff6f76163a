package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const queryTimeout = 5 * time.Second

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
)

// LedgerError wraps every failure of a stock mutation.
type LedgerError struct {
	ProductID primitive.ObjectID
	Quantity  int
	Err       error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("stock update for product %s (qty %d): %v", e.ProductID.Hex(), e.Quantity, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Ledger owns products.stock. Callers never read-then-write stock themselves.
type Ledger struct {
	coll *mongo.Collection
}

func NewLedger(db *mongo.Database) *Ledger {
	return &Ledger{coll: db.Collection("products")}
}

// Decrement applies stock = max(0, stock - quantity) as one pipeline update and
// returns the stock after the update.
func (l *Ledger) Decrement(ctx context.Context, productID primitive.ObjectID, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, &LedgerError{ProductID: productID, Quantity: quantity, Err: ErrInvalidQuantity}
	}
	return l.apply(ctx, productID, quantity, decrementPipeline(quantity))
}

// Restock adds quantity back. It is only reachable from the admin API and is
// never triggered by an order cancellation.
func (l *Ledger) Restock(ctx context.Context, productID primitive.ObjectID, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, &LedgerError{ProductID: productID, Quantity: quantity, Err: ErrInvalidQuantity}
	}
	return l.apply(ctx, productID, quantity, restockPipeline(quantity))
}

// currentStock reads $stock as an int. Missing, null and non-numeric values
// (legacy documents stored stock as strings) count as 0, so the update never
// fails on a bad document and rewrites it as a number.
func currentStock() bson.D {
	return bson.D{{Key: "$convert", Value: bson.D{
		{Key: "input", Value: "$stock"},
		{Key: "to", Value: "int"},
		{Key: "onError", Value: 0},
		{Key: "onNull", Value: 0},
	}}}
}

func decrementPipeline(quantity int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "stock", Value: bson.D{{Key: "$max", Value: bson.A{
				0,
				bson.D{{Key: "$subtract", Value: bson.A{currentStock(), quantity}}},
			}}}},
		}}},
	}
}

func restockPipeline(quantity int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "stock", Value: bson.D{{Key: "$add", Value: bson.A{currentStock(), quantity}}}},
		}}},
	}
}

func (l *Ledger) apply(ctx context.Context, productID primitive.ObjectID, quantity int, update interface{}) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"stock": 1})

	var raw bson.M
	err := l.coll.FindOneAndUpdate(ctx, bson.M{"_id": productID}, update, opts).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, &LedgerError{ProductID: productID, Quantity: quantity, Err: ErrProductNotFound}
	}
	if err != nil {
		return 0, &LedgerError{ProductID: productID, Quantity: quantity, Err: err}
	}
	return stockValue(raw["stock"]), nil
}

// stockValue accepts the numeric types legacy product documents were written with.
func stockValue(val interface{}) int {
	switch typed := val.(type) {
	case int32:
		return int(typed)
	case int64:
		return int(typed)
	case float64:
		return int(typed)
	case int:
		return typed
	default:
		return 0
	}
}
