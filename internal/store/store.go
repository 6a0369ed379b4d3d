package store

import "context"

// Store defines the durable key-value persistence API.
// It acts as the write-through shadow of the in-memory controller state: the in-memory structures stay authoritative
// and the store only exists so that a process restart can reconstruct them.
type Store interface {
	// Get retrieves the value assigned to a key.
	// The boolean return value indicates whether the key was present at all.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set assigns a value to a key, overwriting any previous value
	Set(ctx context.Context, key, value string) error

	// Delete removes a key.
	// Deleting a key that does not exist is a no-op.
	Delete(ctx context.Context, key string) error
}

// Driver represents a key-value store driver
type Driver interface {
	Store

	// Initialize initializes the storage driver (i.e. opens a database connection)
	Initialize(ctx context.Context) error

	// Close closes the storage driver (i.e. closes a database connection)
	Close()
}
