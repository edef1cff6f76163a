package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyTxClaim = "paymob:tx:%s"
	TTLClaim   = 48 * time.Hour
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Claims records gateway transaction ids that are being or have been
// reconciled. The first caller to claim an id wins.
type Claims struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClaims(client *redis.Client) *Claims {
	return &Claims{client: client, ttl: TTLClaim}
}

func (c *Claims) Claim(ctx context.Context, transactionID string) (bool, error) {
	ok, err := c.client.SetNX(ctx, fmt.Sprintf(keyTxClaim, transactionID), 1, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim transaction %s: %w", transactionID, err)
	}
	return ok, nil
}

// Release drops a claim so a retried notification can be processed again.
func (c *Claims) Release(ctx context.Context, transactionID string) error {
	return c.client.Del(ctx, fmt.Sprintf(keyTxClaim, transactionID)).Err()
}

// NopClaims always grants the claim. Used when Redis is not configured.
type NopClaims struct{}

func (NopClaims) Claim(context.Context, string) (bool, error) { return true, nil }

func (NopClaims) Release(context.Context, string) error { return nil }
