package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/restaurant-reservation/internal/database"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// VisitRepo archives completed subscriber visits.
type VisitRepo struct {
	db *sql.DB
}

// NewVisitRepo returns a VisitRepo bound to the given store.
func NewVisitRepo(st *database.Store) *VisitRepo { return &VisitRepo{db: st.DB()} }

// CreateTx inserts a visit-history row within the caller's transaction.
func (r *VisitRepo) CreateTx(ctx context.Context, tx *sql.Tx, v *model.VisitRecord) error {
	if v.Status == "" {
		v.Status = string(model.StatusCompleted)
	}
	discounted := 0
	if v.Discounted {
		discounted = 1
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO visit_history
         (subscriber_id, confirmation_code, diners, arrived_at, departed_at, total_cents, discounted, status)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.SubscriberID, v.Code, v.Diners, toMillis(v.ArrivedAt), toMillis(v.DepartedAt), v.Total, discounted, v.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return nil
}

// ListBySubscriber returns a subscriber's visits, newest first.
func (r *VisitRepo) ListBySubscriber(ctx context.Context, subscriberID uint64) ([]model.VisitRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, subscriber_id, confirmation_code, diners, arrived_at, departed_at, total_cents, discounted, status
         FROM visit_history WHERE subscriber_id = ? ORDER BY departed_at DESC, id DESC`, subscriberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.VisitRecord, 0)
	for rows.Next() {
		var v model.VisitRecord
		var arrived, departed int64
		var discounted int
		if err := rows.Scan(&v.ID, &v.SubscriberID, &v.Code, &v.Diners, &arrived, &departed, &v.Total, &discounted, &v.Status); err != nil {
			return nil, err
		}
		v.ArrivedAt = fromMillis(arrived)
		v.DepartedAt = fromMillis(departed)
		v.Discounted = discounted != 0
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountByCode returns how many visits were archived for a confirmation
// code.
func (r *VisitRepo) CountByCode(ctx context.Context, code string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visit_history WHERE confirmation_code = ?`, code).Scan(&n)
	return n, err
}
