package postgres

import (
	"context"
	"embed"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/skybi/verisuite/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Driver represents the PostgreSQL key-value store driver implementation
type Driver struct {
	dsn string
	db  *pgxpool.Pool
}

var _ store.Driver = (*Driver)(nil)

// New creates a new empty PostgreSQL key-value store driver.
// Use Initialize to open the database connection.
func New(dsn string) *Driver {
	return &Driver{
		dsn: dsn,
	}
}

// Initialize opens the database connection and migrates the database
func (driver *Driver) Initialize(ctx context.Context) error {
	// Perform SQL migrations
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	migrator, err := migrate.NewWithSourceInstance("iofs", source, driver.dsn)
	if err != nil {
		return err
	}
	defer migrator.Close()
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	// Initialize the database connection pool
	pool, err := pgxpool.Connect(ctx, driver.dsn)
	if err != nil {
		return err
	}
	driver.db = pool

	return nil
}

// Get retrieves the value assigned to a key
func (driver *Driver) Get(ctx context.Context, key string) (string, bool, error) {
	query, vals, err := squirrel.Select("value").From("kv_entries").
		Where(squirrel.Eq{"key": key}).PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return "", false, err
	}

	var value string
	if err := driver.db.QueryRow(ctx, query, vals...).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// Set assigns a value to a key
func (driver *Driver) Set(ctx context.Context, key, value string) error {
	query, vals, err := squirrel.Insert("kv_entries").Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value").
		PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return err
	}
	_, err = driver.db.Exec(ctx, query, vals...)
	return err
}

// Delete removes a key
func (driver *Driver) Delete(ctx context.Context, key string) error {
	query, vals, err := squirrel.Delete("kv_entries").
		Where(squirrel.Eq{"key": key}).PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return err
	}
	_, err = driver.db.Exec(ctx, query, vals...)
	return err
}

// Close closes the database connection
func (driver *Driver) Close() {
	driver.db.Close()
	driver.db = nil
}
