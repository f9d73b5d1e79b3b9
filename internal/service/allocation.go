package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
)

// AllocateTable seats the party holding code at the smallest available
// table that fits it and returns the table number.
//
// For a reservation the checks run in order: unknown code, already
// arrived, not today, not CONFIRMED/LATE, no fitting table. A code that
// belongs to a NOTIFIED waiting entry seats the walk-in the same way.
// Taking the table and binding it to the party happen in one transaction;
// a failure in either write rolls both back and is reported as
// ErrAllocationFailed.
func (e *Engine) AllocateTable(ctx context.Context, code string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	code = strings.TrimSpace(code)
	var (
		table int
		ob    outbox
	)
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := e.reservations.GetByCodeTx(ctx, tx, code)
		if errors.Is(err, repository.ErrReservationNotFound) {
			table, err = e.seatWaitingTx(ctx, tx, code)
			if err == nil {
				ob.listChanged = true
			}
			return err
		}
		if err != nil {
			return err
		}
		table, err = e.seatReservationTx(ctx, tx, res)
		return err
	})
	if err != nil {
		return 0, opErr("allocate table", err)
	}
	log.Printf("engine: %s seated at table %d", code, table)
	e.flush(ctx, &ob)
	return table, nil
}

func (e *Engine) seatReservationTx(ctx context.Context, tx *sql.Tx, res model.Reservation) (int, error) {
	if res.Status == model.StatusArrived {
		return 0, ErrAlreadyArrived
	}
	if res.Date != e.policy.Today(e.now()) {
		return 0, ErrNotToday
	}
	if res.Status != model.StatusConfirmed && res.Status != model.StatusLate {
		return 0, ErrNotConfirmed
	}
	t, err := e.bestFitTx(ctx, tx, res.Guests)
	if err != nil {
		return 0, err
	}
	if err := e.tables.SetStatusTx(ctx, tx, t.Number, model.TableAvailable, model.TableTaken); err != nil {
		return 0, fmt.Errorf("%w: take table %d: %w", ErrAllocationFailed, t.Number, err)
	}
	if err := e.reservations.MarkArrivedTx(ctx, tx, res.ID, res.Status, t.Number, e.now().UTC()); err != nil {
		return 0, fmt.Errorf("%w: bind reservation %s: %w", ErrAllocationFailed, res.Code, err)
	}
	return t.Number, nil
}

func (e *Engine) seatWaitingTx(ctx context.Context, tx *sql.Tx, code string) (int, error) {
	w, err := e.waiting.GetByCodeTx(ctx, tx, code)
	if errors.Is(err, repository.ErrWaitingNotFound) {
		return 0, ErrInvalidCode
	}
	if err != nil {
		return 0, err
	}
	switch w.Status {
	case model.WaitingTableFound:
		return 0, ErrAlreadyArrived
	case model.WaitingWaiting:
		return 0, ErrNotConfirmed
	case model.WaitingPaid:
		return 0, ErrInvalidCode
	}
	t, err := e.bestFitTx(ctx, tx, w.Guests)
	if err != nil {
		return 0, err
	}
	if err := e.tables.SetStatusTx(ctx, tx, t.Number, model.TableAvailable, model.TableTaken); err != nil {
		return 0, fmt.Errorf("%w: take table %d: %w", ErrAllocationFailed, t.Number, err)
	}
	if err := e.waiting.SeatTx(ctx, tx, w.ID, t.Number, e.now().UTC()); err != nil {
		return 0, fmt.Errorf("%w: bind waiting entry %s: %w", ErrAllocationFailed, w.Code, err)
	}
	return t.Number, nil
}

func (e *Engine) bestFitTx(ctx context.Context, tx *sql.Tx, guests int) (model.Table, error) {
	t, err := e.tables.BestFitTx(ctx, tx, guests)
	if errors.Is(err, repository.ErrTableNotFound) {
		return model.Table{}, ErrNoTableAvailable
	}
	return t, err
}

// ReleaseTable frees a TAKEN table and offers its capacity to the waiting
// list in the same transaction. It returns the promoted entry, if any.
func (e *Engine) ReleaseTable(ctx context.Context, number int) (*model.WaitingEntry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var (
		ob       outbox
		promoted *model.WaitingEntry
	)
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		capacity, err := e.freeTableTx(ctx, tx, number)
		if err != nil {
			return err
		}
		promoted, err = e.offerTx(ctx, tx, capacity)
		if err != nil {
			return err
		}
		ob.promoted(promoted)
		return nil
	})
	if err != nil {
		return nil, opErr("release table", err)
	}
	log.Printf("engine: table %d released", number)
	e.flush(ctx, &ob)
	return promoted, nil
}

// freeTableTx flips a table from TAKEN to AVAILABLE and returns its
// capacity.
func (e *Engine) freeTableTx(ctx context.Context, tx *sql.Tx, number int) (int, error) {
	t, err := e.tables.GetTx(ctx, tx, number)
	if errors.Is(err, repository.ErrTableNotFound) {
		return 0, ErrTableNotFound
	}
	if err != nil {
		return 0, err
	}
	err = e.tables.SetStatusTx(ctx, tx, number, model.TableTaken, model.TableAvailable)
	if errors.Is(err, repository.ErrConflict) {
		return 0, ErrTableNotTaken
	}
	if err != nil {
		return 0, err
	}
	return t.Capacity, nil
}

// offerTx hands free seats to the waiting list. freed is the capacity of a
// table released in this transaction, or 0 when nothing specific was freed.
func (e *Engine) offerTx(ctx context.Context, tx *sql.Tx, freed int) (*model.WaitingEntry, error) {
	capacity, err := e.unclaimedCapacityTx(ctx, tx, freed)
	if err != nil {
		return nil, err
	}
	return e.PromoteFromWaitingList(ctx, tx, capacity)
}

// unclaimedCapacityTx returns how many seats can be offered without
// promising one table twice. Every NOTIFIED entry, oldest first, claims the
// smallest free table that seats it. The result is freed when a table of
// that size is still unclaimed, otherwise the largest unclaimed free table,
// or 0.
func (e *Engine) unclaimedCapacityTx(ctx context.Context, tx *sql.Tx, freed int) (int, error) {
	free, err := e.tables.AvailableTx(ctx, tx)
	if err != nil {
		return 0, err
	}
	notified, err := e.waiting.NotifiedTx(ctx, tx)
	if err != nil {
		return 0, err
	}
	for _, w := range notified {
		for i, t := range free {
			if t.Capacity >= w.Guests {
				free = append(free[:i], free[i+1:]...)
				break
			}
		}
	}
	if len(free) == 0 {
		return 0, nil
	}
	for _, t := range free {
		if t.Capacity == freed {
			return freed, nil
		}
	}
	return free[len(free)-1].Capacity, nil
}

// PromoteFromWaitingList moves the oldest WAITING entry whose party fits in
// freedCapacity to NOTIFIED, inside the caller's transaction. The candidate
// is selected with a locking read and updated conditionally, so two
// concurrent promotions never pick the same entry. It returns nil when
// nobody fits. Notification is left to the caller, after commit.
func (e *Engine) PromoteFromWaitingList(ctx context.Context, tx *sql.Tx, freedCapacity int) (*model.WaitingEntry, error) {
	if freedCapacity <= 0 {
		return nil, nil
	}
	w, err := e.waiting.FirstFitTx(ctx, tx, freedCapacity)
	if errors.Is(err, repository.ErrWaitingNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	at := e.now().UTC()
	err = e.waiting.MarkNotifiedTx(ctx, tx, w.ID, at)
	if errors.Is(err, repository.ErrConflict) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w.Status = model.WaitingNotified
	w.NotifiedAt = &at
	return &w, nil
}
