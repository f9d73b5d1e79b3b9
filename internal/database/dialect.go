package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Dialect captures the few places where MySQL and SQLite differ.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// DialectFor maps a DB_DRIVER value to a Dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported DB_DRIVER %q", driver)
}

// LockClause is appended to SELECTs that pick a row the transaction is about
// to update. SQLite serializes writers at the database level and has no row
// locks, so the clause is empty there; conditional updates still guard
// against lost races.
func (d Dialect) LockClause() string {
	if d == MySQL {
		return " FOR UPDATE"
	}
	return ""
}

// IsDuplicateKey reports whether err is a unique-index violation.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
