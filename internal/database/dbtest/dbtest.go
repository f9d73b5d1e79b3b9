// Package dbtest opens throwaway in-memory stores for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/iliyamo/restaurant-reservation/internal/database"
)

// New returns a migrated in-memory SQLite store that is closed when the test
// ends.
func New(t testing.TB) *database.Store {
	t.Helper()
	st, err := database.Open(database.Options{Driver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}
