// Package sqlite provides a SQLite-backed storage driver using ent, for
// local development and single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	entdriver "github.com/papercomputeco/chatrelay/pkg/storage/ent/driver"
)

// Driver implements storage.Driver using SQLite via the ent driver.
type Driver struct {
	*entdriver.EntDriver
}

// NewDriver creates a new SQLite-backed store and applies the schema.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver
	// (registered as "sqlite3"). Foreign keys are a per-connection pragma, so
	// they go in the DSN rather than a one-off Exec.
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Wrap the database connection with ent's SQL driver and run ent's
	// auto-migration. This handles append-only schema changes.
	ed := entdriver.New(entsql.OpenDB(dialect.SQLite, db))
	if err := ed.Migrate(ctx); err != nil {
		ed.Close()
		return nil, err
	}

	return &Driver{EntDriver: ed}, nil
}

// dsn names in-memory databases uniquely and shares their cache, so every
// pooled connection of one driver sees the same database and separate
// drivers never do.
func dsn(path string) string {
	if path == ":memory:" {
		return "file:chatrelay-" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	}
	return "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
}
