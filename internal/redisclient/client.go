package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eshop-backend/internal/models"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when no cached cart exists for a customer.
var ErrCacheMiss = errors.New("cache miss")

type Client struct {
	rdb     *redis.Client
	cartTTL time.Duration
}

// NewClient creates a new Redis client.
func NewClient(addr, password string, db int, cartTTL time.Duration) (*Client, error) {
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

	return &Client{rdb: rdb, cartTTL: cartTTL}, nil
}

// NewClientFromRedis wraps an existing redis client; used by tests.
func NewClientFromRedis(rdb *redis.Client, cartTTL time.Duration) *Client {
	return &Client{rdb: rdb, cartTTL: cartTTL}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func cartKey(customerID int64) string {
	return fmt.Sprintf("cart:%d", customerID)
}

// GetCart retrieves a cached cart for the customer.
func (c *Client) GetCart(ctx context.Context, customerID int64) (*models.Cart, error) {
	data, err := c.rdb.Get(ctx, cartKey(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cached cart failed: %w", err)
	}
	return &cart, nil
}

// SetCart caches the customer's cart with the configured TTL.
func (c *Client) SetCart(ctx context.Context, customerID int64, cart *models.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := c.rdb.Set(ctx, cartKey(customerID), data, c.cartTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// DeleteCart drops the cached cart; called after every cart mutation and
// after order placement consumes the cart.
func (c *Client) DeleteCart(ctx context.Context, customerID int64) error {
	return c.rdb.Del(ctx, cartKey(customerID)).Err()
}

// AcquireLock acquires a distributed lock; used to serialize concurrent
// settlement attempts against the same order.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
