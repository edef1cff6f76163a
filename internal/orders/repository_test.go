package orders

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/database"
	"storefront/internal/models"
)

func getTestDatabase(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	client, err := database.Connect(uri)
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	db := client.Database(fmt.Sprintf("orders_test_%d", time.Now().UnixNano()))
	require.NoError(t, database.EnsureOrderIndexes(db))

	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func newPendingOrder(gatewayOrderID string) *models.Order {
	return &models.Order{
		OrderID:        "ORD-" + gatewayOrderID,
		Customer:       models.CustomerInfo{Name: "Test", Email: "test@example.com", Phone: "0100"},
		Items:          []models.OrderItem{{ProductID: primitive.NewObjectID(), Quantity: 2, UnitPrice: 100}},
		TotalAmount:    250,
		PaymentMethod:  models.PaymentMethodCard,
		PaymentStatus:  models.PaymentStatusPending,
		OrderStatus:    models.OrderStatusPending,
		GatewayOrderID: gatewayOrderID,
	}
}

func TestCreateAndFindByGatewayOrderID(t *testing.T) {
	repo := NewRepository(getTestDatabase(t))
	ctx := context.Background()

	order := newPendingOrder("gw-1")
	require.NoError(t, repo.Create(ctx, order))
	assert.False(t, order.ID.IsZero())

	found, err := repo.FindByGatewayOrderID(ctx, "gw-1")
	require.NoError(t, err)
	assert.Equal(t, order.OrderID, found.OrderID)
	assert.Equal(t, 250.0, found.TotalAmount)

	_, err = repo.FindByGatewayOrderID(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCreateDuplicateGatewayOrderID(t *testing.T) {
	repo := NewRepository(getTestDatabase(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newPendingOrder("gw-dup")))

	again := newPendingOrder("gw-dup")
	again.OrderID = "ORD-other"
	assert.ErrorIs(t, repo.Create(ctx, again), ErrAlreadyExists)
}

func TestTransitionPendingOnlyOnce(t *testing.T) {
	repo := NewRepository(getTestDatabase(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newPendingOrder("gw-2")))

	update := models.StatusUpdate{
		OrderStatus:          models.OrderStatusProcessing,
		PaymentStatus:        models.PaymentStatusCompleted,
		GatewayTransactionID: "txn-1",
	}

	updated, err := repo.TransitionPending(ctx, "gw-2", update)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, updated.OrderStatus)
	assert.Equal(t, "txn-1", updated.GatewayTransactionID)

	update.GatewayTransactionID = "txn-2"
	_, err = repo.TransitionPending(ctx, "gw-2", update)
	assert.ErrorIs(t, err, ErrNotPending)

	found, err := repo.FindByGatewayOrderID(ctx, "gw-2")
	require.NoError(t, err)
	assert.Equal(t, "txn-1", found.GatewayTransactionID)
}

func TestTransitionPendingConcurrent(t *testing.T) {
	repo := NewRepository(getTestDatabase(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newPendingOrder("gw-3")))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.TransitionPending(ctx, "gw-3", models.StatusUpdate{
				OrderStatus:   models.OrderStatusProcessing,
				PaymentStatus: models.PaymentStatusCompleted,
			})
			if err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestTransitionPendingRejectsInvalidTarget(t *testing.T) {
	repo := NewRepository(getTestDatabase(t))

	_, err := repo.TransitionPending(context.Background(), "gw-4", models.StatusUpdate{
		OrderStatus: models.OrderStatusDelivered,
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotPending)
}

func TestListAndDelete(t *testing.T) {
	repo := NewRepository(getTestDatabase(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		order := newPendingOrder(fmt.Sprintf("gw-list-%d", i))
		order.UserID = "user-1"
		require.NoError(t, repo.Create(ctx, order))
	}

	mine, err := repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	page, total, err := repo.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)

	require.NoError(t, repo.Delete(ctx, page[0].ID))
	assert.ErrorIs(t, repo.Delete(ctx, page[0].ID), ErrOrderNotFound)

	_, err = repo.FindForUser(ctx, mine[0].OrderID, "someone-else")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
