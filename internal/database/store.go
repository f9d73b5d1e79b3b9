package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotReady is returned when the store was never opened or has been
// closed.
var ErrNotReady = errors.New("database pool not ready")

// Store is the thin adapter the repositories and the engine share: the
// pooled handle, the dialect, and transaction scoping.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// NewStore wraps an already opened handle.
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB exposes the underlying sql.DB for read-only queries outside a
// transaction.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Dialect returns the SQL flavour of the store.
func (s *Store) Dialect() Dialect {
	if s == nil {
		return MySQL
	}
	return s.dialect
}

// Ready reports whether the store can serve queries.
func (s *Store) Ready() bool { return s != nil && s.db != nil }

// Close releases the pool.
func (s *Store) Close() error {
	if !s.Ready() {
		return nil
	}
	return s.db.Close()
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back on error or panic, so either every write of fn is visible or
// none is.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	if !s.Ready() {
		return ErrNotReady
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		_ = tx.Rollback()
		if p := recover(); p != nil {
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
