package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/restaurant-reservation/internal/database"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// TableRepo manages the restaurant_tables floor plan. Table status is only
// changed through the conditional SetStatusTx so that two transactions can
// never both take the same table.
type TableRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewTableRepo returns a TableRepo bound to the given store.
func NewTableRepo(st *database.Store) *TableRepo {
	return &TableRepo{db: st.DB(), dialect: st.Dialect()}
}

// Create inserts a table. A table number that already exists yields
// ErrDuplicate.
func (r *TableRepo) Create(ctx context.Context, t model.Table) error {
	if t.Status == "" {
		t.Status = model.TableAvailable
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO restaurant_tables (table_number, capacity, status) VALUES (?, ?, ?)`,
		t.Number, t.Capacity, string(t.Status))
	if database.IsDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// List returns every table ordered by number.
func (r *TableRepo) List(ctx context.Context) ([]model.Table, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT table_number, capacity, status FROM restaurant_tables ORDER BY table_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Table, 0)
	for rows.Next() {
		var t model.Table
		var status string
		if err := rows.Scan(&t.Number, &t.Capacity, &status); err != nil {
			return nil, err
		}
		t.Status = model.TableStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

// TotalCapacityTx sums the seats of every table regardless of status. It is
// the ceiling used by the booking-time overlap check.
func (r *TableRepo) TotalCapacityTx(ctx context.Context, tx *sql.Tx) (int, error) {
	var total int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(capacity), 0) FROM restaurant_tables`).Scan(&total)
	return total, err
}

// TotalCapacity is TotalCapacityTx outside a transaction.
func (r *TableRepo) TotalCapacity(ctx context.Context) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(capacity), 0) FROM restaurant_tables`).Scan(&total)
	return total, err
}

// BestFitTx selects and row-locks the smallest AVAILABLE table that seats
// guests, breaking ties by table number. ErrTableNotFound means no free
// table is large enough.
func (r *TableRepo) BestFitTx(ctx context.Context, tx *sql.Tx, guests int) (model.Table, error) {
	q := `SELECT table_number, capacity, status FROM restaurant_tables
          WHERE status = ? AND capacity >= ?
          ORDER BY capacity ASC, table_number ASC
          LIMIT 1` + r.dialect.LockClause()
	var t model.Table
	var status string
	err := tx.QueryRowContext(ctx, q, string(model.TableAvailable), guests).Scan(&t.Number, &t.Capacity, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Table{}, ErrTableNotFound
	}
	if err != nil {
		return model.Table{}, err
	}
	t.Status = model.TableStatus(status)
	return t, nil
}

// GetTx reads and row-locks a table by number.
func (r *TableRepo) GetTx(ctx context.Context, tx *sql.Tx, number int) (model.Table, error) {
	q := `SELECT table_number, capacity, status FROM restaurant_tables WHERE table_number = ?` + r.dialect.LockClause()
	var t model.Table
	var status string
	err := tx.QueryRowContext(ctx, q, number).Scan(&t.Number, &t.Capacity, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Table{}, ErrTableNotFound
	}
	if err != nil {
		return model.Table{}, err
	}
	t.Status = model.TableStatus(status)
	return t, nil
}

// SetStatusTx flips a table from one status to another. ErrConflict means
// the table was not in from, e.g. another arrival took it first.
func (r *TableRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, number int, from, to model.TableStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE restaurant_tables SET status = ? WHERE table_number = ? AND status = ?`,
		string(to), number, string(from))
	if err != nil {
		return err
	}
	return affected(res)
}

// AvailableTx row-locks every free table, smallest first, ties broken by
// table number.
func (r *TableRepo) AvailableTx(ctx context.Context, tx *sql.Tx) ([]model.Table, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT table_number, capacity, status FROM restaurant_tables
         WHERE status = ?
         ORDER BY capacity ASC, table_number ASC`+r.dialect.LockClause(),
		string(model.TableAvailable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Table, 0)
	for rows.Next() {
		var t model.Table
		var status string
		if err := rows.Scan(&t.Number, &t.Capacity, &status); err != nil {
			return nil, err
		}
		t.Status = model.TableStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}
