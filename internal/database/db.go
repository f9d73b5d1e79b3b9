package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/go-sql-driver/mysql"
)

// Options describes how to reach the relational store.
type Options struct {
	Driver     string // "mysql" or "sqlite"
	User       string
	Pass       string
	Host       string
	Port       string
	Name       string
	SQLitePath string // file path or ":memory:"
}

// Open connects to the configured store, applies pool settings and verifies
// the connection. The returned Store must be closed by the caller.
func Open(opts Options) (*Store, error) {
	dialect, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	var db *sql.DB
	switch dialect {
	case MySQL:
		auth := opts.User
		if opts.Pass != "" {
			auth = fmt.Sprintf("%s:%s", opts.User, opts.Pass)
		}
		// clientFoundRows makes RowsAffected count matched rows, which the
		// conditional updates in the repositories rely on
		dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
			auth, opts.Host, opts.Port, opts.Name)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	case SQLite:
		path := opts.SQLitePath
		if path == "" {
			path = ":memory:"
		}
		db, err = sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
		if err != nil {
			return nil, err
		}
		// SQLite has a single writer and an in-memory database lives only as
		// long as its connection, so the pool is pinned to one connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dialect: dialect}, nil
}
