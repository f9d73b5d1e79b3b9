package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/database"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// ReservationRepo provides CRUD operations and lookups for reservations.
// Dates and start times are stored in their wire formats (YYYY-MM-DD and
// HH:MM); timestamps are unix milliseconds.
type ReservationRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewReservationRepo returns a ReservationRepo bound to the given store.
func NewReservationRepo(st *database.Store) *ReservationRepo {
	return &ReservationRepo{db: st.DB(), dialect: st.Dialect()}
}

const reservationColumns = `id, confirmation_code, reservation_date, start_time, guests, subscriber_id,
       phone, email, status, table_number, arrived_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(s rowScanner) (model.Reservation, error) {
	var (
		r         model.Reservation
		status    string
		subID     sql.NullInt64
		table     sql.NullInt64
		arrived   sql.NullInt64
		createdMs int64
	)
	if err := s.Scan(&r.ID, &r.Code, &r.Date, &r.Time, &r.Guests, &subID,
		&r.Phone, &r.Email, &status, &table, &arrived, &createdMs); err != nil {
		return model.Reservation{}, err
	}
	r.Status = model.ReservationStatus(status)
	r.SubscriberID = uintPtr(subID)
	r.TableNumber = intPtr(table)
	r.ArrivedAt = timePtr(arrived)
	r.CreatedAt = fromMillis(createdMs)
	return r, nil
}

func collectReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateTx inserts a reservation within the caller's transaction and
// populates the generated ID. A confirmation code that already exists
// yields ErrDuplicate.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations
        (confirmation_code, reservation_date, start_time, guests, subscriber_id, phone, email, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	result, err := tx.ExecContext(ctx, q, res.Code, res.Date, res.Time, res.Guests, nullUint(res.SubscriberID),
		res.Phone, res.Email, string(res.Status), toMillis(res.CreatedAt))
	if err != nil {
		if database.IsDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

func (r *ReservationRepo) getOne(ctx context.Context, q querier, where string, arg any, lock bool) (model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE ` + where
	if lock {
		query += r.dialect.LockClause()
	}
	res, err := scanReservation(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrReservationNotFound
	}
	return res, err
}

// GetByID returns the reservation with the given id.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	return r.getOne(ctx, r.db, "id = ?", id, false)
}

// GetByCode returns the reservation holding the confirmation code.
func (r *ReservationRepo) GetByCode(ctx context.Context, code string) (model.Reservation, error) {
	return r.getOne(ctx, r.db, "confirmation_code = ?", code, false)
}

// GetByIDTx reads and row-locks a reservation by id inside tx.
func (r *ReservationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	return r.getOne(ctx, tx, "id = ?", id, true)
}

// GetByCodeTx reads and row-locks a reservation by code inside tx.
func (r *ReservationRepo) GetByCodeTx(ctx context.Context, tx *sql.Tx, code string) (model.Reservation, error) {
	return r.getOne(ctx, tx, "confirmation_code = ?", code, true)
}

// CodeExistsTx reports whether any reservation already uses code.
func (r *ReservationRepo) CodeExistsTx(ctx context.Context, tx *sql.Tx, code string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE confirmation_code = ?`, code).Scan(&n)
	return n > 0, err
}

// ListByDate returns the reservations on date whose status is one of
// statuses (all statuses when none are given), ordered by start time.
func (r *ReservationRepo) ListByDate(ctx context.Context, date string, statuses ...model.ReservationStatus) ([]model.Reservation, error) {
	return r.listByDate(ctx, r.db, date, false, statuses)
}

// ActiveByDateTx returns and locks the reservations on date that still hold
// capacity. Locking the date's rows serializes concurrent bookings for the
// same day so the capacity check cannot be raced.
func (r *ReservationRepo) ActiveByDateTx(ctx context.Context, tx *sql.Tx, date string) ([]model.Reservation, error) {
	return r.listByDate(ctx, tx, date, true, model.ActiveStatuses)
}

func (r *ReservationRepo) listByDate(ctx context.Context, q querier, date string, lock bool, statuses []model.ReservationStatus) ([]model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE reservation_date = ?`
	args := []any{date}
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY start_time, id`
	if lock {
		query += r.dialect.LockClause()
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// ExpirableOnOrBefore lists CONFIRMED and LATE reservations dated on or
// before date. It feeds the expiry sweep, which decides per row whether the
// grace period has passed.
func (r *ReservationRepo) ExpirableOnOrBefore(ctx context.Context, date string) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
         WHERE status IN (?, ?) AND reservation_date <= ?
         ORDER BY reservation_date, start_time, id`,
		string(model.StatusConfirmed), string(model.StatusLate), date)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// TransitionTx moves a reservation from one status to another only if it is
// still in from. It returns ErrConflict when the row was not in the
// expected state.
func (r *ReservationRepo) TransitionTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.ReservationStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return err
	}
	return affected(res)
}

// Transition is TransitionTx outside an explicit transaction. The expiry
// sweep uses it so each row is an independent conditional update.
func (r *ReservationRepo) Transition(ctx context.Context, id uint64, from, to model.ReservationStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return err
	}
	return affected(res)
}

// MarkArrivedTx binds a table and sets ARRIVED, provided the reservation is
// still in from.
func (r *ReservationRepo) MarkArrivedTx(ctx context.Context, tx *sql.Tx, id uint64, from model.ReservationStatus, table int, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, table_number = ?, arrived_at = ? WHERE id = ? AND status = ?`,
		string(model.StatusArrived), table, toMillis(at), id, string(from))
	if err != nil {
		return err
	}
	return affected(res)
}

// UpdateSlotTx rewrites date, start time and party size of a reservation
// that is still in status.
func (r *ReservationRepo) UpdateSlotTx(ctx context.Context, tx *sql.Tx, id uint64, status model.ReservationStatus, date, startTime string, guests int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE reservations SET reservation_date = ?, start_time = ?, guests = ? WHERE id = ? AND status = ?`,
		date, startTime, guests, id, string(status))
	if err != nil {
		return err
	}
	return affected(res)
}
