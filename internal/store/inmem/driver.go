package inmem

import (
	"context"

	"github.com/hashicorp/go-memdb"
	"github.com/skybi/verisuite/internal/store"
)

var dbSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		"entries": {
			Name: "entries",
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:         "id",
					Unique:       true,
					AllowMissing: false,
					Indexer:      &memdb.StringFieldIndex{Field: "Key"},
				},
			},
		},
	},
}

type entry struct {
	Key   string
	Value string
}

// Driver represents the in-memory key-value store driver built using hashicorp/go-memdb.
// Its contents do not survive a process restart; it is primarily meant for development and tests.
type Driver struct {
	db *memdb.MemDB
}

var _ store.Driver = (*Driver)(nil)

// New creates a new empty in-memory key-value store driver
func New() *Driver {
	return &Driver{}
}

// Initialize creates the underlying in-memory database
func (driver *Driver) Initialize(_ context.Context) error {
	db, err := memdb.NewMemDB(dbSchema)
	if err != nil {
		return err
	}
	driver.db = db
	return nil
}

// Get retrieves the value assigned to a key
func (driver *Driver) Get(_ context.Context, key string) (string, bool, error) {
	txn := driver.db.Txn(false)
	obj, err := txn.First("entries", "id", key)
	if err != nil {
		return "", false, err
	}
	if obj == nil {
		return "", false, nil
	}
	return obj.(*entry).Value, true, nil
}

// Set assigns a value to a key
func (driver *Driver) Set(_ context.Context, key, value string) error {
	txn := driver.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert("entries", &entry{Key: key, Value: value}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// Delete removes a key
func (driver *Driver) Delete(_ context.Context, key string) error {
	txn := driver.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll("entries", "id", key); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// Close discards the underlying in-memory database
func (driver *Driver) Close() {
	driver.db = nil
}
