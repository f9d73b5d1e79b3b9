package database

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// Migrate applies every embedded migration for the store's dialect that has
// not been recorded in schema_migrations yet, in file name order.
func (s *Store) Migrate(ctx context.Context) error {
	if !s.Ready() {
		return ErrNotReady
	}
	dir := "migrations/" + string(s.dialect)
	entries, err := migrations.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version VARCHAR(255) PRIMARY KEY)`); err != nil {
		return err
	}

	for _, f := range files {
		var applied int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, f).Scan(&applied); err != nil {
			return err
		}
		if applied > 0 {
			continue
		}
		b, err := migrations.ReadFile(dir + "/" + f)
		if err != nil {
			return err
		}
		// the MySQL driver runs one statement per Exec unless multiStatements
		// is enabled, so files are split on semicolons
		for _, stmt := range strings.Split(string(b), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply %s: %w", f, err)
			}
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, f); err != nil {
			return err
		}
	}
	return nil
}
