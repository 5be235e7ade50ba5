// Package entdriver implements storage.Driver on ent's SQL driver. Queries
// are assembled with ent's dialect-aware builders so the same code serves
// Postgres and SQLite; the postgres and sqlite packages only open the
// connection and run the migration.
package entdriver

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/ent/migrate"
)

// EntDriver provides storage operations over an ent SQL driver.
// It is database-agnostic and can be embedded by specific drivers.
type EntDriver struct {
	drv *sql.Driver
	now func() time.Time
}

// Option configures an EntDriver.
type Option func(*EntDriver)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(ed *EntDriver) { ed.now = now }
}

// New wraps drv. It does not migrate; call Migrate.
func New(drv *sql.Driver, opts ...Option) *EntDriver {
	ed := &EntDriver{
		drv: drv,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(ed)
	}
	return ed
}

// Migrate runs ent's auto-migration: missing tables, columns and indexes
// are created, nothing is dropped.
func (ed *EntDriver) Migrate(ctx context.Context) error {
	if err := migrate.NewSchema(ed.drv).Create(ctx); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// DB exposes the underlying handle.
func (ed *EntDriver) DB() *stdsql.DB {
	return ed.drv.DB()
}

// Close closes the underlying database handle.
func (ed *EntDriver) Close() error {
	return ed.drv.Close()
}

func (ed *EntDriver) builder() *sql.DialectBuilder {
	return sql.Dialect(ed.drv.Dialect())
}

// selectFrom starts a query over table.
func (ed *EntDriver) selectFrom(table string, columns ...string) *sql.Selector {
	b := ed.builder()
	return b.Select(columns...).From(b.Table(table))
}

// inTx runs fn inside a transaction, rolling back on error.
func (ed *EntDriver) inTx(ctx context.Context, fn func(tx dialect.Tx) error) error {
	tx, err := ed.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// exists reports whether table has a row with the given id.
func (ed *EntDriver) exists(ctx context.Context, conn dialect.ExecQuerier, table, id string) (bool, error) {
	ids, err := queryAll(ctx, conn, ed.selectFrom(table, "id").Where(sql.EQ("id", id)).Limit(1), scanString)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// exec runs q and returns the number of affected rows.
func exec(ctx context.Context, conn dialect.ExecQuerier, q sql.Querier) (int64, error) {
	query, args := q.Query()
	var res stdsql.Result
	if err := conn.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// scanner is satisfied by *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func queryAll[T any](ctx context.Context, conn dialect.ExecQuerier, q sql.Querier, scan func(scanner) (T, error)) ([]T, error) {
	query, args := q.Query()
	rows := &sql.Rows{}
	if err := conn.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// queryOne returns the first row of q, or NotFoundError when there is none.
func queryOne[T any](ctx context.Context, conn dialect.ExecQuerier, q sql.Querier, scan func(scanner) (T, error), resource, id string) (T, error) {
	var zero T
	all, err := queryAll(ctx, conn, q, scan)
	if err != nil {
		return zero, fmt.Errorf("failed to get %s: %w", resource, err)
	}
	if len(all) == 0 {
		return zero, storage.NotFoundError{Resource: resource, ID: id}
	}
	return all[0], nil
}

// requireAffected returns NotFoundError when n is zero.
func requireAffected(n int64, resource, id string) error {
	if n == 0 {
		return storage.NotFoundError{Resource: resource, ID: id}
	}
	return nil
}

func scanString(row scanner) (string, error) {
	var s string
	err := row.Scan(&s)
	return s, err
}

func encodeJSON(v map[string]any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode json column: %w", err)
	}
	return string(b), nil
}

func decodeJSON(raw stdsql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, fmt.Errorf("failed to decode json column: %w", err)
	}
	return out, nil
}

func nullString(s *string) stdsql.NullString {
	if s == nil {
		return stdsql.NullString{}
	}
	return stdsql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) stdsql.NullInt64 {
	if i == nil {
		return stdsql.NullInt64{}
	}
	return stdsql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullTime(t *time.Time) stdsql.NullTime {
	if t == nil {
		return stdsql.NullTime{}
	}
	return stdsql.NullTime{Time: t.UTC(), Valid: true}
}

func stringPtr(ns stdsql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func intPtr(ni stdsql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func timePtr(nt stdsql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time.UTC()
	return &v
}

var _ storage.Driver = (*EntDriver)(nil)
