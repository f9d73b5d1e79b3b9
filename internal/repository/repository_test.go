package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/database"
	"github.com/iliyamo/restaurant-reservation/internal/database/dbtest"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
)

func seedTables(t *testing.T, repo *repository.TableRepo, tables ...model.Table) {
	t.Helper()
	for _, tb := range tables {
		if err := repo.Create(context.Background(), tb); err != nil {
			t.Fatalf("create table %d: %v", tb.Number, err)
		}
	}
}

func inTx(t *testing.T, st *database.Store, fn func(tx *sql.Tx) error) error {
	t.Helper()
	return st.WithTx(context.Background(), fn)
}

func TestBestFitPicksSmallestSufficientTable(t *testing.T) {
	st := dbtest.New(t)
	tables := repository.NewTableRepo(st)
	seedTables(t, tables,
		model.Table{Number: 1, Capacity: 6},
		model.Table{Number: 2, Capacity: 2},
		model.Table{Number: 3, Capacity: 4},
		model.Table{Number: 4, Capacity: 4},
	)

	cases := []struct {
		guests int
		want   int
	}{
		{1, 2}, {2, 2}, {3, 3}, {4, 3}, {5, 1}, {6, 1},
	}
	for _, tc := range cases {
		var got model.Table
		err := inTx(t, st, func(tx *sql.Tx) error {
			var err error
			got, err = tables.BestFitTx(context.Background(), tx, tc.guests)
			return err
		})
		if err != nil {
			t.Fatalf("guests=%d: %v", tc.guests, err)
		}
		if got.Number != tc.want {
			t.Fatalf("guests=%d: table %d, want %d", tc.guests, got.Number, tc.want)
		}
	}

	err := inTx(t, st, func(tx *sql.Tx) error {
		_, err := tables.BestFitTx(context.Background(), tx, 7)
		return err
	})
	if !errors.Is(err, repository.ErrTableNotFound) {
		t.Fatalf("party of 7: err = %v, want ErrTableNotFound", err)
	}
}

func TestTableStatusIsConditional(t *testing.T) {
	st := dbtest.New(t)
	tables := repository.NewTableRepo(st)
	seedTables(t, tables, model.Table{Number: 1, Capacity: 2})
	ctx := context.Background()

	take := func() error {
		return inTx(t, st, func(tx *sql.Tx) error {
			return tables.SetStatusTx(ctx, tx, 1, model.TableAvailable, model.TableTaken)
		})
	}
	if err := take(); err != nil {
		t.Fatalf("first take: %v", err)
	}
	if err := take(); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("second take: err = %v, want ErrConflict", err)
	}
	err := inTx(t, st, func(tx *sql.Tx) error {
		_, err := tables.BestFitTx(ctx, tx, 1)
		return err
	})
	if !errors.Is(err, repository.ErrTableNotFound) {
		t.Fatalf("taken table offered again: %v", err)
	}
	if err := seedDup(tables); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("duplicate table number: err = %v", err)
	}
}

func seedDup(tables *repository.TableRepo) error {
	return tables.Create(context.Background(), model.Table{Number: 1, Capacity: 8})
}

func TestReservationCreateAndLookup(t *testing.T) {
	st := dbtest.New(t)
	repo := repository.NewReservationRepo(st)
	ctx := context.Background()
	sub := uint64(9)

	res := model.Reservation{
		Code: "ABC123", Date: "2026-10-20", Time: "18:00", Guests: 3,
		SubscriberID: &sub, Status: model.StatusConfirmed,
	}
	if err := inTx(t, st, func(tx *sql.Tx) error { return repo.CreateTx(ctx, tx, &res) }); err != nil {
		t.Fatal(err)
	}
	if res.ID == 0 {
		t.Fatal("id not populated")
	}

	byID, err := repo.GetByID(ctx, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	byCode, err := repo.GetByCode(ctx, "ABC123")
	if err != nil {
		t.Fatal(err)
	}
	for _, got := range []model.Reservation{byID, byCode} {
		if got.Date != "2026-10-20" || got.Time != "18:00" || got.Guests != 3 || got.Status != model.StatusConfirmed {
			t.Fatalf("unexpected row %+v", got)
		}
		if got.SubscriberID == nil || *got.SubscriberID != 9 {
			t.Fatalf("subscriber id = %v", got.SubscriberID)
		}
		if got.TableNumber != nil || got.ArrivedAt != nil {
			t.Fatalf("fresh reservation has table binding: %+v", got)
		}
	}

	dup := model.Reservation{Code: "ABC123", Date: "2026-10-21", Time: "12:00", Guests: 1, Status: model.StatusConfirmed}
	err = inTx(t, st, func(tx *sql.Tx) error { return repo.CreateTx(ctx, tx, &dup) })
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("duplicate code: err = %v", err)
	}

	if _, err := repo.GetByID(ctx, 999); !errors.Is(err, repository.ErrReservationNotFound) {
		t.Fatalf("missing id: err = %v", err)
	}
}

func TestReservationTransitionsAreConditional(t *testing.T) {
	st := dbtest.New(t)
	repo := repository.NewReservationRepo(st)
	ctx := context.Background()

	res := model.Reservation{Code: "R1", Date: "2026-10-20", Time: "18:00", Guests: 2, Status: model.StatusConfirmed}
	if err := inTx(t, st, func(tx *sql.Tx) error { return repo.CreateTx(ctx, tx, &res) }); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 10, 20, 18, 5, 0, 0, time.UTC)
	if err := inTx(t, st, func(tx *sql.Tx) error {
		return repo.MarkArrivedTx(ctx, tx, res.ID, model.StatusConfirmed, 4, at)
	}); err != nil {
		t.Fatal(err)
	}
	err := inTx(t, st, func(tx *sql.Tx) error {
		return repo.MarkArrivedTx(ctx, tx, res.ID, model.StatusConfirmed, 5, at)
	})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("second arrival: err = %v, want ErrConflict", err)
	}
	got, err := repo.GetByID(ctx, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusArrived || got.TableNumber == nil || *got.TableNumber != 4 {
		t.Fatalf("after arrival: %+v", got)
	}
	if got.ArrivedAt == nil || !got.ArrivedAt.Equal(at) {
		t.Fatalf("arrived_at = %v, want %v", got.ArrivedAt, at)
	}
	if err := repo.Transition(ctx, res.ID, model.StatusConfirmed, model.StatusExpired); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expiring an arrived reservation: err = %v", err)
	}
}

func TestListByDateFiltersStatus(t *testing.T) {
	st := dbtest.New(t)
	repo := repository.NewReservationRepo(st)
	ctx := context.Background()

	rows := []model.Reservation{
		{Code: "A", Date: "2026-10-20", Time: "20:00", Guests: 2, Status: model.StatusConfirmed},
		{Code: "B", Date: "2026-10-20", Time: "18:00", Guests: 2, Status: model.StatusCanceled},
		{Code: "C", Date: "2026-10-20", Time: "12:00", Guests: 2, Status: model.StatusLate},
		{Code: "D", Date: "2026-10-21", Time: "12:00", Guests: 2, Status: model.StatusConfirmed},
	}
	for i := range rows {
		if err := inTx(t, st, func(tx *sql.Tx) error { return repo.CreateTx(ctx, tx, &rows[i]) }); err != nil {
			t.Fatal(err)
		}
	}
	active, err := repo.ListByDate(ctx, "2026-10-20", model.ActiveStatuses...)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 || active[0].Code != "C" || active[1].Code != "A" {
		t.Fatalf("active = %+v", active)
	}
	all, err := repo.ListByDate(ctx, "2026-10-20")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %d rows, want 3", len(all))
	}
	expirable, err := repo.ExpirableOnOrBefore(ctx, "2026-10-20")
	if err != nil {
		t.Fatal(err)
	}
	if len(expirable) != 2 || expirable[0].Code != "C" || expirable[1].Code != "A" {
		t.Fatalf("expirable = %+v", expirable)
	}
}

func TestWaitingListFIFO(t *testing.T) {
	st := dbtest.New(t)
	repo := repository.NewWaitingRepo(st)
	ctx := context.Background()
	now := time.Date(2026, 10, 20, 19, 0, 0, 0, time.UTC)

	add := func(code string, guests int) model.WaitingEntry {
		w := model.WaitingEntry{Code: code, Contact: "555-0100", Guests: guests}
		// same clock reading every time: entry_time must still increase
		if err := inTx(t, st, func(tx *sql.Tx) error { return repo.CreateTx(ctx, tx, &w, now) }); err != nil {
			t.Fatalf("add %s: %v", code, err)
		}
		return w
	}
	w1 := add("W1", 4)
	w2 := add("W2", 2)
	w3 := add("W3", 2)
	if !(w1.EntryTime < w2.EntryTime && w2.EntryTime < w3.EntryTime) {
		t.Fatalf("entry times not increasing: %d %d %d", w1.EntryTime, w2.EntryTime, w3.EntryTime)
	}

	pick := func(capacity int) (model.WaitingEntry, error) {
		var got model.WaitingEntry
		err := inTx(t, st, func(tx *sql.Tx) error {
			var err error
			got, err = repo.FirstFitTx(ctx, tx, capacity)
			if err != nil {
				return err
			}
			return repo.MarkNotifiedTx(ctx, tx, got.ID, now)
		})
		return got, err
	}

	got, err := pick(2)
	if err != nil || got.Code != "W2" {
		t.Fatalf("capacity 2 picked %q (%v), want W2", got.Code, err)
	}
	got, err = pick(2)
	if err != nil || got.Code != "W3" {
		t.Fatalf("capacity 2 picked %q (%v), want W3", got.Code, err)
	}
	if _, err := pick(2); !errors.Is(err, repository.ErrWaitingNotFound) {
		t.Fatalf("nobody left for 2: err = %v", err)
	}
	got, err = pick(6)
	if err != nil || got.Code != "W1" {
		t.Fatalf("capacity 6 picked %q (%v), want W1", got.Code, err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].Code != "W1" || list[0].Status != model.WaitingNotified {
		t.Fatalf("list = %+v", list)
	}

	if err := inTx(t, st, func(tx *sql.Tx) error { return repo.DeleteTx(ctx, tx, "W3") }); err != nil {
		t.Fatal(err)
	}
	if err := inTx(t, st, func(tx *sql.Tx) error { return repo.DeleteTx(ctx, tx, "W3") }); !errors.Is(err, repository.ErrWaitingNotFound) {
		t.Fatalf("second delete: err = %v", err)
	}
}

func TestUserRoleLookup(t *testing.T) {
	st := dbtest.New(t)
	users := repository.NewUserRepo(st)
	ctx := context.Background()

	id, err := users.Create(ctx, model.User{Username: "Alice", Role: model.RoleSubscriber}, "pw", 4)
	if err != nil {
		t.Fatal(err)
	}
	u, err := users.GetByUsername(ctx, "alice")
	if err != nil || u.ID != id {
		t.Fatalf("GetByUsername = %+v, %v", u, err)
	}
	if _, err := users.Create(ctx, model.User{Username: "alice", Role: model.RoleManager}, "pw", 4); !errors.Is(err, repository.ErrUsernameExists) {
		t.Fatalf("duplicate username: err = %v", err)
	}
	role, err := users.RoleOf(ctx, &id)
	if err != nil || role != model.RoleSubscriber {
		t.Fatalf("RoleOf = %q, %v", role, err)
	}
	missing := uint64(404)
	if role, _ := users.RoleOf(ctx, &missing); role != model.RoleGuest {
		t.Fatalf("unknown id role = %q", role)
	}
	if role, _ := users.RoleOf(ctx, nil); role != model.RoleGuest {
		t.Fatalf("nil id role = %q", role)
	}
	if _, err := users.GetByUsername(ctx, "nobody"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("missing user: err = %v", err)
	}
}
