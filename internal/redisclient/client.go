package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/decrement_stock.lua
var decrementStockScript string

//go:embed scripts/restore_stock.lua
var restoreStockScript string

type Client struct {
	rdb             *redis.Client
	decrementScript *redis.Script
	restoreScript   *redis.Script
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
		rdb:             rdb,
		decrementScript: redis.NewScript(decrementStockScript),
		restoreScript:   redis.NewScript(restoreStockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// DecrementStock atomically decrements cached stock (clamped at zero) and
// increments the sales counter. Returns the new stock count; cached is false
// when the book has no inventory entry in Redis and the caller must fall
// back to the database.
func (c *Client) DecrementStock(ctx context.Context, bookID int64, quantity int) (newStock int, cached bool, err error) {
	key := fmt.Sprintf("inventory:%d", bookID)

	result, err := c.decrementScript.Run(ctx, c.rdb, []string{key}, quantity).Result()
	if err != nil {
		return 0, false, fmt.Errorf("decrement stock script failed: %w", err)
	}

	val, ok := result.(int64)
	if !ok {
		return 0, false, fmt.Errorf("unexpected script result type")
	}
	if val < 0 {
		return 0, false, nil
	}
	return int(val), true, nil
}

// RestoreStock atomically returns units to cached stock (compensation)
func (c *Client) RestoreStock(ctx context.Context, bookID int64, quantity int) error {
	key := fmt.Sprintf("inventory:%d", bookID)

	_, err := c.restoreScript.Run(ctx, c.rdb, []string{key}, quantity).Result()
	if err != nil {
		return fmt.Errorf("restore stock script failed: %w", err)
	}
	return nil
}

// InitInventory initializes cached inventory counts for a book
func (c *Client) InitInventory(ctx context.Context, bookID int64, stock, sales int) error {
	key := fmt.Sprintf("inventory:%d", bookID)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, "stock", stock)
	pipe.HSet(ctx, key, "sales", sales)

	_, err := pipe.Exec(ctx)
	return err
}

// GetInventory retrieves cached inventory counts for a book
func (c *Client) GetInventory(ctx context.Context, bookID int64) (stock, sales int, err error) {
	key := fmt.Sprintf("inventory:%d", bookID)

	result, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}

	if len(result) == 0 {
		return 0, 0, fmt.Errorf("inventory not cached for book %d", bookID)
	}

	var stockInt, salesInt int
	fmt.Sscanf(result["stock"], "%d", &stockInt)
	fmt.Sscanf(result["sales"], "%d", &salesInt)

	return stockInt, salesInt, nil
}

// SetJSON stores a JSON-encoded value with a TTL
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// GetJSON retrieves a JSON-encoded value. Returns redis.Nil when absent.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Delete removes a key
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}
