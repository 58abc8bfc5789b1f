package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"library-management-api/internal/store"
)

const schemaVersion = 2

// openLoanIndex allows one borrowed row per (user, book). Added in version 2.
const openLoanIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_open_loan
	ON transactions (user_id, book_id) WHERE status = 'borrowed'`

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'student'
		              CHECK (role IN ('admin', 'librarian', 'student', 'teacher')),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id               BIGSERIAL PRIMARY KEY,
		title            TEXT NOT NULL,
		author           TEXT NOT NULL,
		isbn             TEXT NOT NULL UNIQUE,
		category         TEXT NOT NULL,
		publisher        TEXT NOT NULL DEFAULT '',
		publication_year INTEGER NOT NULL DEFAULT 0,
		description      TEXT NOT NULL DEFAULT '',
		location         TEXT NOT NULL DEFAULT '',
		quantity         INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 0),
		available        INTEGER NOT NULL DEFAULT 1 CHECK (available >= 0 AND available <= quantity),
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT NOT NULL REFERENCES users(id),
		book_id     BIGINT NOT NULL REFERENCES books(id),
		borrow_date TIMESTAMPTZ NOT NULL,
		due_date    TIMESTAMPTZ NOT NULL,
		return_date TIMESTAMPTZ,
		status      TEXT NOT NULL DEFAULT 'borrowed'
		            CHECK (status IN ('borrowed', 'returned', 'overdue')),
		fine        NUMERIC(10, 2) NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK ((status = 'borrowed') = (return_date IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_book_id ON transactions (book_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_status_due ON transactions (status, due_date)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_borrow_date ON transactions (borrow_date)`,
	openLoanIndex,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'student'
		              CHECK (role IN ('admin', 'librarian', 'student', 'teacher')),
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		title            TEXT NOT NULL,
		author           TEXT NOT NULL,
		isbn             TEXT NOT NULL UNIQUE,
		category         TEXT NOT NULL,
		publisher        TEXT NOT NULL DEFAULT '',
		publication_year INTEGER NOT NULL DEFAULT 0,
		description      TEXT NOT NULL DEFAULT '',
		location         TEXT NOT NULL DEFAULT '',
		quantity         INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 0),
		available        INTEGER NOT NULL DEFAULT 1 CHECK (available >= 0 AND available <= quantity),
		created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id     INTEGER NOT NULL REFERENCES users(id),
		book_id     INTEGER NOT NULL REFERENCES books(id),
		borrow_date DATETIME NOT NULL,
		due_date    DATETIME NOT NULL,
		return_date DATETIME,
		status      TEXT NOT NULL DEFAULT 'borrowed'
		            CHECK (status IN ('borrowed', 'returned', 'overdue')),
		fine        REAL NOT NULL DEFAULT 0,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK ((status = 'borrowed') = (return_date IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_book_id ON transactions (book_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_status_due ON transactions (status, due_date)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_borrow_date ON transactions (borrow_date)`,
	openLoanIndex,
}

// migrate creates the schema once and records its version in the meta table.
func (s *Store) migrate(ctx context.Context) error {
	if !s.postgres {
		// WAL lets readers proceed while a borrow holds the write lock.
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("enable WAL: %w", err)
		}
	}

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	stmts := sqliteSchema
	if s.postgres {
		stmts = postgresSchema
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration: %w", err)
			}
		}

		upsert := tx.Rebind(`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value`)
		if _, err := tx.ExecContext(ctx, upsert, strconv.Itoa(schemaVersion)); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	})
}

// SchemaVersion returns the applied schema version, 0 for an empty database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM meta WHERE key = 'schema_version'`)
	if err != nil {
		if errors.Is(mapError(err), store.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", value, err)
	}
	return v, nil
}
