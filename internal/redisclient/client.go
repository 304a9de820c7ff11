package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/claim_stock.lua
var claimStockScript string

//go:embed scripts/release_stock.lua
var releaseStockScript string

// invoiceTTL bounds how long a webhook invoice id is remembered in the
// fast-path; the processed_events table is the durable dedupe record.
const invoiceTTL = 72 * time.Hour

type Client struct {
	rdb           *redis.Client
	claimScript   *redis.Script
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		claimScript:   redis.NewScript(claimStockScript),
		releaseScript: redis.NewScript(releaseStockScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(variantID string) string {
	return fmt.Sprintf("stock:%s", variantID)
}

// SetStock overwrites the cached available-code count for a variant
func (c *Client) SetStock(ctx context.Context, variantID string, count int) error {
	return c.rdb.Set(ctx, stockKey(variantID), count, 0).Err()
}

// GetStock reads the cached available-code count. The second return value
// reports whether the cache held a value at all.
func (c *Client) GetStock(ctx context.Context, variantID string) (int, bool, error) {
	count, err := c.rdb.Get(ctx, stockKey(variantID)).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

// TryReserveStock conditionally decrements the cached counter. This is an
// advisory pre-check only; the SQL claim stays authoritative. Returns false
// when the cache says the quantity cannot be covered.
func (c *Client) TryReserveStock(ctx context.Context, variantID string, quantity int) (bool, error) {
	result, err := c.claimScript.Run(ctx, c.rdb, []string{stockKey(variantID)}, quantity).Result()
	if err != nil {
		return false, fmt.Errorf("claim stock script failed: %w", err)
	}

	outcome, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	switch outcome {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		// cache miss: let the caller fall through to the database
		return true, nil
	}
}

// ReleaseStock returns a previously reserved quantity to the cached counter
func (c *Client) ReleaseStock(ctx context.Context, variantID string, quantity int) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{stockKey(variantID)}, quantity).Result()
	if err != nil {
		return fmt.Errorf("release stock script failed: %w", err)
	}
	return nil
}

// MarkInvoiceSeen records a webhook invoice id and reports whether this was
// the first sighting. Used as the replay fast-path in front of the durable
// processed_events check.
func (c *Client) MarkInvoiceSeen(ctx context.Context, invoiceID, status string) (bool, error) {
	key := fmt.Sprintf("invoice:%s:%s", invoiceID, status)
	return c.rdb.SetNX(ctx, key, "1", invoiceTTL).Result()
}

// ForgetInvoice drops the replay marker so a delivery that failed mid-flight
// can be retried by the gateway.
func (c *Client) ForgetInvoice(ctx context.Context, invoiceID, status string) error {
	key := fmt.Sprintf("invoice:%s:%s", invoiceID, status)
	return c.rdb.Del(ctx, key).Err()
}
