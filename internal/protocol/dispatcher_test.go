package protocol

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/connection"
	"github.com/iliyamo/restaurant-reservation/internal/database/dbtest"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
	"github.com/iliyamo/restaurant-reservation/internal/service"
	"github.com/iliyamo/restaurant-reservation/internal/timewindow"
)

type lines struct {
	mu  sync.Mutex
	got []string
}

func (l *lines) Send(s string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, s)
	return nil
}

func (l *lines) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.got...)
}

type harness struct {
	d   *Dispatcher
	reg *connection.Registry
	eng *service.Engine
}

func newHarness(t *testing.T) harness {
	t.Helper()
	st := dbtest.New(t)
	reg := connection.NewRegistry()
	policy := timewindow.DefaultPolicy()
	policy.Location = time.UTC
	clock := timewindow.NewFixedClock(time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC))
	eng := service.NewEngine(st, service.Options{Policy: &policy, Clock: clock, Events: Broadcaster{Registry: reg}})
	if _, err := eng.SeedTables(context.Background(), []model.Table{{Number: 1, Capacity: 4}, {Number: 2, Capacity: 2}}); err != nil {
		t.Fatal(err)
	}
	users := repository.NewUserRepo(st)
	for _, u := range []model.User{
		{Username: "boss", Role: model.RoleManager},
		{Username: "sub", Role: model.RoleSubscriber},
	} {
		if _, err := users.Create(context.Background(), u, "pw", 4); err != nil {
			t.Fatal(err)
		}
	}
	d := &Dispatcher{
		Engine:   eng,
		Auth:     &service.Auth{Users: users, Secret: "test-secret", TTLMin: 5},
		Registry: reg,
	}
	return harness{d: d, reg: reg, eng: eng}
}

func (h harness) connect() (*connection.Session, *lines) {
	out := &lines{}
	return h.reg.Add("127.0.0.1:1", out), out
}

func (h harness) do(t *testing.T, s *connection.Session, req, want string) string {
	t.Helper()
	got, _ := h.d.Handle(context.Background(), s, req)
	if want != "" && got != want {
		t.Fatalf("%s\n got: %s\nwant: %s", req, got, want)
	}
	return got
}

func TestReservationConversation(t *testing.T) {
	h := newHarness(t)
	s, _ := h.connect()

	h.do(t, s, "#CREATE_RESERVATION 4 2026-10-20 18:00 A1 0 555-0100", "RESERVATION_CREATED|1")
	h.do(t, s, "#CREATE_RESERVATION 4 2026-10-20 18:00 B1 0 555-0101", "ERROR|SLOT_UNAVAILABLE")
	h.do(t, s, "#CREATE_RESERVATION 2 2026-10-20 18:00 A1 0 555-0101", "ERROR|DUPLICATE_CODE")
	h.do(t, s, "#CREATE_RESERVATION 2 2026-10-20 09:00 C1 0 555-0101", "ERROR|OUTSIDE_HOURS")
	h.do(t, s, "#SUGGEST_SLOTS 4 2026-10-20 18:00", "SUGGESTED_SLOTS|2026-10-20 20:00|2026-10-20 21:00|2026-10-20 22:00")
	h.do(t, s, "#GET_RESERVATION 1", "RESERVATION|1|4|2026-10-20|18:00|A1|0|CONFIRMED|GUEST")
	h.do(t, s, "#GET_RESERVATION 99", "RESERVATION_NOT_FOUND")
	h.do(t, s, "#GET_RESERVATION_BY_CODE A1", "RESERVATION|1|4|2026-10-20|18:00|A1|0|CONFIRMED|GUEST")
	h.do(t, s, "#CREATE_RESERVATION 1 2026-10-20 20:00 C1 0 c@example.com", "RESERVATION_CREATED|2")
	h.do(t, s, "#GET_RESERVATIONS_BY_DATE 2026-10-20", "RESERVATIONS_FOR_DATE|2026-10-20|18:00|20:00")
	h.do(t, s, "#UPDATE_RESERVATION 2 2 2026-10-20 20:00", "RESERVATION_UPDATED|2")
	h.do(t, s, "#RECEIVE_TABLE A1", "TABLE_ASSIGNED|1")
	h.do(t, s, "#RECEIVE_TABLE A1", "ERROR|ALREADY_ARRIVED")
	h.do(t, s, "#RECEIVE_TABLE ZZ", "INVALID_CONFIRMATION_CODE")
	h.do(t, s, "#GET_BILL A1", "BILL|A1|4|400|0|400|GUEST")
	h.do(t, s, "#GET_BILL C1", "ERROR|NOT_SEATED")
	h.do(t, s, "#GET_BILL NOPE", "BILL_NOT_FOUND")
	h.do(t, s, "#PAY_BILL A1 CASH", "BILL_PAID|A1|400")
	h.do(t, s, "#CANCEL_RESERVATION C1", "RESERVATION_CANCELED|C1")
	h.do(t, s, "#CANCEL_RESERVATION C1", "ERROR|CANCEL_FAILED")
}

func TestSubscriberDiscountOnTheWire(t *testing.T) {
	h := newHarness(t)
	s, _ := h.connect()
	h.do(t, s, "#CREATE_RESERVATION 3 2026-10-20 18:00 S1 2", "RESERVATION_CREATED|1")
	h.do(t, s, "#RECEIVE_TABLE S1", "TABLE_ASSIGNED|1")
	h.do(t, s, "#GET_BILL S1", "BILL|S1|3|300|10|270|SUBSCRIBER")
	h.do(t, s, "#PAY_BILL S1 CREDIT", "BILL_PAID|S1|270")
}

func TestStaffCommandsNeedLogin(t *testing.T) {
	h := newHarness(t)
	s, _ := h.connect()

	h.do(t, s, "#LIST_TABLES", "ERROR|FORBIDDEN|STAFF_ONLY")
	h.do(t, s, "#LOGIN boss wrong", "ERROR|INVALID_CREDENTIALS")
	login := h.do(t, s, "#LOGIN boss pw", "")
	parts := strings.Split(login, "|")
	if len(parts) != 4 || parts[0] != "LOGIN_OK" || parts[1] != "boss" || parts[2] != model.RoleManager {
		t.Fatalf("login = %q", login)
	}
	h.do(t, s, "#LIST_TABLES", "TABLES|1:4:AVAILABLE|2:2:AVAILABLE")
	h.do(t, s, "#SWEEP_EXPIRED", "EXPIRED_SWEPT|0")
	h.do(t, s, "#RELEASE_TABLE 1", "ERROR|TABLE_NOT_TAKEN")

	// a second connection reuses the token
	other, _ := h.connect()
	h.do(t, other, "#IDENTIFY garbage", "ERROR|INVALID_TOKEN")
	h.do(t, other, "#IDENTIFY "+parts[3], "IDENTIFIED|boss|MANAGER")
	_, role := other.Identity()
	if role != model.RoleManager {
		t.Fatalf("session role = %q", role)
	}
	h.do(t, other, "#CREATE_RESERVATION 2 2026-10-20 18:00 L1 0 555", "RESERVATION_CREATED|1")
	h.do(t, other, "#MARK_LATE L1", "RESERVATION_LATE|L1")
}

func TestWaitingListPushes(t *testing.T) {
	h := newHarness(t)
	watcher, pushed := h.connect()
	actor, actorOut := h.connect()

	h.do(t, watcher, "#SUBSCRIBE_WAITING_LIST", "SUBSCRIBED")
	h.do(t, actor, "#CREATE_RESERVATION 4 2026-10-20 18:00 A 0 555", "RESERVATION_CREATED|1")
	h.do(t, actor, "#CREATE_RESERVATION 2 2026-10-20 18:00 B 0 555", "RESERVATION_CREATED|2")
	h.do(t, actor, "#RECEIVE_TABLE A", "TABLE_ASSIGNED|1")
	h.do(t, actor, "#RECEIVE_TABLE B", "TABLE_ASSIGNED|2")
	// "555-0100" in base64
	h.do(t, actor, "#ADD_WAITING_LIST 2 NTU1LTAxMDA= W1", "WAITING_ADDED|W1")
	h.do(t, actor, "#ADD_WAITING_LIST 2 NTU1LTAxMDA= W2", "WAITING_ADDED|W2")
	h.do(t, actor, "#ADD_WAITING_LIST 2 NTU1LTAxMDA= W2", "ERROR|INSERT_FAILED|DUPLICATE_CODE")
	h.do(t, actor, "#GET_WAITING_LIST", "WAITING_LIST|W1:2:WAITING|W2:2:WAITING")
	h.do(t, actor, "#PAY_BILL B CARD", "BILL_PAID|B|200")

	got := pushed.all()
	want := []string{
		"WAITING_LIST|W1:2:WAITING",
		"WAITING_LIST|W1:2:WAITING|W2:2:WAITING",
		"WAITING_NOTIFIED|W1",
		"WAITING_LIST|W1:2:NOTIFIED|W2:2:WAITING",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("pushes:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	if len(actorOut.all()) != 0 {
		t.Fatalf("unsubscribed actor received pushes: %v", actorOut.all())
	}

	h.do(t, watcher, "#UNSUBSCRIBE_WAITING_LIST", "UNSUBSCRIBED")
	h.do(t, actor, "#LEAVE_WAITING_LIST W2", "WAITING_REMOVED|W2")
	h.do(t, actor, "#LEAVE_WAITING_LIST W2", "ERROR|NOT_FOUND")
	if len(pushed.all()) != len(want) {
		t.Fatal("push delivered after unsubscribe")
	}
}

func TestProtocolErrors(t *testing.T) {
	h := newHarness(t)
	s, _ := h.connect()
	h.do(t, s, "#NOPE", "ERROR|UNKNOWN_COMMAND")
	h.do(t, s, "#GET_RESERVATION abc", "ERROR|BAD_REQUEST|id must be a positive number")
	h.do(t, s, "#CREATE_RESERVATION 0 2026-10-20 18:00 A 0 555", "ERROR|BAD_REQUEST|guests min")
	h.do(t, s, "#CREATE_RESERVATION 2 2026-10-20 18:00 A|B 0 555", "ERROR|BAD_REQUEST|code alphanum")
	h.do(t, s, "#ADD_WAITING_LIST 2 NTU1 W:1", "ERROR|BAD_REQUEST|code alphanum")
	if resp, quit := h.d.Handle(context.Background(), s, "#QUIT"); resp != "BYE" || !quit {
		t.Fatalf("quit = %q, %v", resp, quit)
	}
}

func TestStoreNotReady(t *testing.T) {
	reg := connection.NewRegistry()
	d := &Dispatcher{Engine: service.NewEngine(nil, service.Options{}), Registry: reg}
	s := reg.Add("x", &lines{})
	if got, _ := d.Handle(context.Background(), s, "#GET_WAITING_LIST"); got != "ERROR|DB_POOL_NOT_READY" {
		t.Fatalf("got %q", got)
	}
}
