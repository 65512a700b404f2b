// This file manages the single shared SQLite connection and the scoped
// transaction helper every store builds on.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

// Querier is the statement surface shared by *sql.DB and *sql.Tx. Stores are
// bound to a Querier so the same code runs inside or outside a transaction.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// txBeginner is implemented by *sql.DB.
type txBeginner interface {
	Begin() (*sql.Tx, error)
}

// DB owns the process-wide connection to the database file. The connection
// is opened on first use and reused until Close.
type DB struct {
	mu   sync.Mutex
	path string
	conn *sql.DB
}

// NewDB returns a connection manager for the database file at path. Nothing
// is opened until Conn is called.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Exists reports whether the database file has been created.
func (d *DB) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// Conn returns the shared connection, opening it if needed. Opening creates
// the parent directory and enables foreign key enforcement. The pool is
// capped at one connection, so callers must finish reading a result set
// before issuing the next statement.
func (d *DB) Conn() (*sql.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		return d.conn, nil
	}

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", d.path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", d.path, err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	d.conn = conn
	return conn, nil
}

// Close closes the connection if it is open. Close is idempotent.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	if err != nil {
		return fmt.Errorf("closing %s: %w", d.path, err)
	}
	return nil
}

var savepointSeq atomic.Uint64

// withTx runs fn atomically against q. On a *sql.DB it begins a transaction;
// on anything else (an enclosing *sql.Tx) it opens a savepoint, so nested
// batch operations roll back independently. fn's error is returned
// unchanged after the rollback.
func withTx(q Querier, fn func(Querier) error) error {
	if db, ok := q.(txBeginner); ok {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
		return nil
	}

	name := fmt.Sprintf("sp_%d", savepointSeq.Add(1))
	if _, err := q.Exec("SAVEPOINT " + name); err != nil {
		return fmt.Errorf("opening savepoint: %w", err)
	}
	if err := fn(q); err != nil {
		_, rbErr := q.Exec("ROLLBACK TO " + name)
		_, relErr := q.Exec("RELEASE " + name)
		return errors.Join(err, rbErr, relErr)
	}
	if _, err := q.Exec("RELEASE " + name); err != nil {
		return fmt.Errorf("releasing savepoint: %w", err)
	}
	return nil
}
