package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/database"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// WaitingRepo stores walk-in parties waiting for a table. Entries are kept
// in strict FIFO order by entry_time, which CreateTx assigns and nothing
// ever rewrites.
type WaitingRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewWaitingRepo returns a WaitingRepo bound to the given store.
func NewWaitingRepo(st *database.Store) *WaitingRepo {
	return &WaitingRepo{db: st.DB(), dialect: st.Dialect()}
}

const waitingColumns = `id, confirmation_code, contact, subscriber_id, guests, status, entry_time, table_number, notified_at, seated_at`

func scanWaiting(s rowScanner) (model.WaitingEntry, error) {
	var (
		w        model.WaitingEntry
		status   string
		subID    sql.NullInt64
		table    sql.NullInt64
		notified sql.NullInt64
		seated   sql.NullInt64
	)
	if err := s.Scan(&w.ID, &w.Code, &w.Contact, &subID, &w.Guests, &status, &w.EntryTime, &table, &notified, &seated); err != nil {
		return model.WaitingEntry{}, err
	}
	w.Status = model.WaitingStatus(status)
	w.SubscriberID = uintPtr(subID)
	w.TableNumber = intPtr(table)
	w.NotifiedAt = timePtr(notified)
	w.SeatedAt = timePtr(seated)
	return w, nil
}

// CreateTx appends an entry to the list. Its entry_time is now in unix
// microseconds, bumped past the newest existing entry when the clock has not
// advanced, so ordering stays strictly increasing.
func (r *WaitingRepo) CreateTx(ctx context.Context, tx *sql.Tx, w *model.WaitingEntry, now time.Time) error {
	var last int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(entry_time), 0) FROM waiting_list`+r.dialect.LockClause()).Scan(&last); err != nil {
		return err
	}
	entry := now.UnixMicro()
	if entry <= last {
		entry = last + 1
	}
	if w.Status == "" {
		w.Status = model.WaitingWaiting
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO waiting_list (confirmation_code, contact, subscriber_id, guests, status, entry_time)
         VALUES (?, ?, ?, ?, ?, ?)`,
		w.Code, w.Contact, nullUint(w.SubscriberID), w.Guests, string(w.Status), entry)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	w.ID = uint64(id)
	w.EntryTime = entry
	return nil
}

func (r *WaitingRepo) getByCode(ctx context.Context, q querier, code string, lock bool) (model.WaitingEntry, error) {
	query := `SELECT ` + waitingColumns + ` FROM waiting_list WHERE confirmation_code = ?`
	if lock {
		query += r.dialect.LockClause()
	}
	w, err := scanWaiting(q.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return model.WaitingEntry{}, ErrWaitingNotFound
	}
	return w, err
}

// GetByCode returns the entry holding the confirmation code.
func (r *WaitingRepo) GetByCode(ctx context.Context, code string) (model.WaitingEntry, error) {
	return r.getByCode(ctx, r.db, code, false)
}

// GetByCodeTx reads and row-locks an entry inside tx.
func (r *WaitingRepo) GetByCodeTx(ctx context.Context, tx *sql.Tx, code string) (model.WaitingEntry, error) {
	return r.getByCode(ctx, tx, code, true)
}

// CodeExistsTx reports whether any entry already uses code.
func (r *WaitingRepo) CodeExistsTx(ctx context.Context, tx *sql.Tx, code string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM waiting_list WHERE confirmation_code = ?`, code).Scan(&n)
	return n > 0, err
}

// List returns the current list (every entry not yet paid) in FIFO order.
func (r *WaitingRepo) List(ctx context.Context) ([]model.WaitingEntry, error) {
	return r.list(ctx, r.db)
}

// ListTx is List inside a transaction.
func (r *WaitingRepo) ListTx(ctx context.Context, tx *sql.Tx) ([]model.WaitingEntry, error) {
	return r.list(ctx, tx)
}

func (r *WaitingRepo) list(ctx context.Context, q querier) ([]model.WaitingEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+waitingColumns+` FROM waiting_list WHERE status <> ? ORDER BY entry_time ASC`,
		string(model.WaitingPaid))
	if err != nil {
		return nil, err
	}
	return collectWaiting(rows)
}

// NotifiedTx row-locks the NOTIFIED entries in FIFO order. Each of them has
// been promised a table it has not taken yet.
func (r *WaitingRepo) NotifiedTx(ctx context.Context, tx *sql.Tx) ([]model.WaitingEntry, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+waitingColumns+` FROM waiting_list WHERE status = ? ORDER BY entry_time ASC`+r.dialect.LockClause(),
		string(model.WaitingNotified))
	if err != nil {
		return nil, err
	}
	return collectWaiting(rows)
}

func collectWaiting(rows *sql.Rows) ([]model.WaitingEntry, error) {
	defer rows.Close()
	out := make([]model.WaitingEntry, 0)
	for rows.Next() {
		w, err := scanWaiting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// FirstFitTx selects and row-locks the oldest WAITING entry whose party fits
// in capacity. ErrWaitingNotFound means nobody fits.
func (r *WaitingRepo) FirstFitTx(ctx context.Context, tx *sql.Tx, capacity int) (model.WaitingEntry, error) {
	q := `SELECT ` + waitingColumns + ` FROM waiting_list
          WHERE status = ? AND guests <= ?
          ORDER BY entry_time ASC
          LIMIT 1` + r.dialect.LockClause()
	w, err := scanWaiting(tx.QueryRowContext(ctx, q, string(model.WaitingWaiting), capacity))
	if errors.Is(err, sql.ErrNoRows) {
		return model.WaitingEntry{}, ErrWaitingNotFound
	}
	return w, err
}

// MarkNotifiedTx moves a WAITING entry to NOTIFIED. ErrConflict means it was
// already promoted by someone else.
func (r *WaitingRepo) MarkNotifiedTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE waiting_list SET status = ?, notified_at = ? WHERE id = ? AND status = ?`,
		string(model.WaitingNotified), toMillis(at), id, string(model.WaitingWaiting))
	if err != nil {
		return err
	}
	return affected(res)
}

// SeatTx binds a table to a NOTIFIED entry, records when the party sat down
// and moves it to TABLE_FOUND.
func (r *WaitingRepo) SeatTx(ctx context.Context, tx *sql.Tx, id uint64, table int, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE waiting_list SET status = ?, table_number = ?, seated_at = ? WHERE id = ? AND status = ?`,
		string(model.WaitingTableFound), table, toMillis(at), id, string(model.WaitingNotified))
	if err != nil {
		return err
	}
	return affected(res)
}

// MarkPaidTx settles a seated entry.
func (r *WaitingRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE waiting_list SET status = ? WHERE id = ? AND status = ?`,
		string(model.WaitingPaid), id, string(model.WaitingTableFound))
	if err != nil {
		return err
	}
	return affected(res)
}

// DeleteTx hard-deletes a withdrawn entry that has not been seated.
func (r *WaitingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, code string) error {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM waiting_list WHERE confirmation_code = ? AND status IN (?, ?)`,
		code, string(model.WaitingWaiting), string(model.WaitingNotified))
	if err != nil {
		return err
	}
	if err := affected(res); errors.Is(err, ErrConflict) {
		return ErrWaitingNotFound
	} else if err != nil {
		return err
	}
	return nil
}
