package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/skybi/verisuite/internal/store"
)

// Driver represents the Redis key-value store driver
type Driver struct {
	url    string
	client *redis.Client
}

var _ store.Driver = (*Driver)(nil)

// New creates a new Redis key-value store driver.
// Use Initialize to open the connection.
func New(url string) *Driver {
	return &Driver{
		url: url,
	}
}

// Initialize opens the Redis connection and verifies it using a ping
func (driver *Driver) Initialize(ctx context.Context) error {
	opts, err := redis.ParseURL(driver.url)
	if err != nil {
		return err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return err
	}
	driver.client = client
	return nil
}

// Get retrieves the value assigned to a key
func (driver *Driver) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := driver.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// Set assigns a value to a key
func (driver *Driver) Set(ctx context.Context, key, value string) error {
	return driver.client.Set(ctx, key, value, 0).Err()
}

// Delete removes a key
func (driver *Driver) Delete(ctx context.Context, key string) error {
	return driver.client.Del(ctx, key).Err()
}

// Close closes the Redis connection
func (driver *Driver) Close() {
	driver.client.Close()
	driver.client = nil
}
