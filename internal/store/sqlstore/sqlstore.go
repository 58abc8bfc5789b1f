// Package sqlstore implements store.Store on a relational database. The same
// code serves PostgreSQL (through pgx or lib/pq) and SQLite; goqu renders the
// dialect specific SQL and sqlx scans rows into the models.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // register dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // register dialect
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register "pgx" driver
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"library-management-api/internal/store"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPGX      = "pgx"
	DriverPostgres = "postgres"
)

// Store is the relational store.Store implementation.
type Store struct {
	db       *sqlx.DB
	dialect  goqu.DialectWrapper
	postgres bool
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for created_at/updated_at columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open connects to the database, verifies the connection and applies the
// schema migrations.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	var dialect string

	switch driver {
	case DriverSQLite:
		dialect = "sqlite3"
		var err error
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	case DriverPGX, DriverPostgres:
		dialect = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		// every connection would get its own empty database otherwise
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &Store{
		db:       db,
		dialect:  goqu.Dialect(dialect),
		postgres: dialect == "postgres",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// sqliteDSN turns a plain file path into a DSN with the pragmas the store
// relies on. Immediate transactions serialize writers instead of failing
// with SQLITE_BUSY on lock upgrade.
func sqliteDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "file:") {
		return dsn, nil
	}
	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("create db dir: %w", err)
			}
		}
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate&_loc=UTC", dsn), nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// ---------------------------------------------------------------------------
// Query helpers
// ---------------------------------------------------------------------------

type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

func (s *Store) from(table interface{}) *goqu.SelectDataset {
	return s.dialect.From(table).Prepared(true)
}

func (s *Store) update(table string) *goqu.UpdateDataset {
	return s.dialect.Update(table).Prepared(true)
}

func (s *Store) insert(table string) *goqu.InsertDataset {
	return s.dialect.Insert(table).Prepared(true)
}

func (s *Store) delete(table string) *goqu.DeleteDataset {
	return s.dialect.Delete(table).Prepared(true)
}

func get(ctx context.Context, q sqlx.QueryerContext, dest interface{}, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return mapError(sqlx.GetContext(ctx, q, dest, query, args...))
}

func selectAll(ctx context.Context, q sqlx.QueryerContext, dest interface{}, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return mapError(sqlx.SelectContext(ctx, q, dest, query, args...))
}

func exec(ctx context.Context, e sqlx.ExecerContext, b sqlBuilder) (int64, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

// insertID runs an INSERT and returns the generated id. PostgreSQL drivers
// do not implement LastInsertId, so RETURNING is used there.
func (s *Store) insertID(ctx context.Context, q sqlx.ExtContext, ds *goqu.InsertDataset) (int64, error) {
	if s.postgres {
		query, args, err := ds.Returning("id").ToSQL()
		if err != nil {
			return 0, fmt.Errorf("build insert: %w", err)
		}
		var id int64
		if err := q.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, mapError(err)
		}
		return id, nil
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return res.LastInsertId()
}

func (s *Store) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", mapError(err))
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", mapError(err))
	}
	return nil
}

func columns(table string, names []string) []interface{} {
	out := make([]interface{}, len(names))
	for i, name := range names {
		if table == "" {
			out[i] = goqu.C(name)
		} else {
			out[i] = goqu.I(table + "." + name)
		}
	}
	return out
}

// mapError translates driver errors into the store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && isConstraintCode(pgErr.Code) {
		return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Message)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && isConstraintCode(string(pqErr.Code)) {
		return fmt.Errorf("%w: %s", store.ErrConflict, pqErr.Message)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %s", store.ErrConflict, liteErr.Error())
	}

	return err
}

// unique_violation, foreign_key_violation, check_violation
func isConstraintCode(code string) bool {
	return code == "23505" || code == "23503" || code == "23514"
}
