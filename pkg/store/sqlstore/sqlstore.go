// Package sqlstore implements store.Store on sqlx, backed by SQLite
// (modernc.org/sqlite, no cgo) or PostgreSQL (lib/pq).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/jxucoder/codehelper/pkg/model"
	"github.com/jxucoder/codehelper/pkg/store"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	name      TEXT NOT NULL,
	completed BOOLEAN NOT NULL DEFAULT 0
);`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	id        BIGSERIAL PRIMARY KEY,
	name      TEXT NOT NULL,
	completed BOOLEAN NOT NULL DEFAULT FALSE
);`

// Store implements store.Store.
type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to the database and creates the schema. For SQLite the dsn
// is a file path; for Postgres it is a lib/pq connection string.
func Open(driver, dsn string) (*Store, error) {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = sqliteSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if driver == DriverSQLite {
		// A single connection serializes writers and keeps the pragmas
		// applied to every statement.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting WAL mode: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindByEmail returns the user with the given (already normalized) email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`), email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return &u, nil
}

// Insert adds a user. A taken email yields store.ErrEmailExists.
func (s *Store) Insert(ctx context.Context, u *model.User) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at)
		 VALUES (:id, :name, :email, :password_hash, :created_at)`, u)
	if isUniqueViolation(err) {
		return store.ErrEmailExists
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// Count returns the number of registered users.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// ListItems returns all items ordered by id.
func (s *Store) ListItems(ctx context.Context) ([]*model.Item, error) {
	items := []*model.Item{}
	if err := s.db.SelectContext(ctx, &items, `SELECT id, name, completed FROM items ORDER BY id`); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// GetItem returns one item or store.ErrNotFound.
func (s *Store) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	return getItem(ctx, s.db, id)
}

// CreateItem inserts item and sets its ID.
func (s *Store) CreateItem(ctx context.Context, item *model.Item) error {
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(
		`INSERT INTO items (name, completed) VALUES (?, ?) RETURNING id`),
		item.Name, item.Completed).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("creating item: %w", err)
	}
	return nil
}

// UpdateItem applies patch to the item and returns the updated row.
func (s *Store) UpdateItem(ctx context.Context, id int64, patch model.ItemPatch) (*model.Item, error) {
	var updated *model.Item
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		item, err := getItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			item.Name = *patch.Name
		}
		if patch.Completed != nil {
			item.Completed = *patch.Completed
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE items SET name = ?, completed = ? WHERE id = ?`),
			item.Name, item.Completed, id); err != nil {
			return fmt.Errorf("updating item: %w", err)
		}
		updated = item
		return nil
	})
	return updated, err
}

// DeleteItem removes the item and returns what was deleted.
func (s *Store) DeleteItem(ctx context.Context, id int64) (*model.Item, error) {
	var deleted *model.Item
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		item, err := getItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM items WHERE id = ?`), id); err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}
		deleted = item
		return nil
	})
	return deleted, err
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// queryer is the read side shared by *sqlx.DB and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	Rebind(query string) string
}

func getItem(ctx context.Context, q queryer, id int64) (*model.Item, error) {
	var item model.Item
	err := q.GetContext(ctx, &item, q.Rebind(`SELECT id, name, completed FROM items WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return &item, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
