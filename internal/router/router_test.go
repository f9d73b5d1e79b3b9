package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/connection"
	"github.com/iliyamo/restaurant-reservation/internal/database/dbtest"
	"github.com/iliyamo/restaurant-reservation/internal/handler"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/ratelimit"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
	"github.com/iliyamo/restaurant-reservation/internal/service"
	"github.com/iliyamo/restaurant-reservation/internal/timewindow"
)

const secret = "router-test"

type api struct {
	e   *echo.Echo
	eng *service.Engine
	reg *connection.Registry
}

func newAPI(t *testing.T) api {
	t.Helper()
	st := dbtest.New(t)
	policy := timewindow.DefaultPolicy()
	policy.Location = time.UTC
	eng := service.NewEngine(st, service.Options{
		Policy: &policy,
		Clock:  timewindow.NewFixedClock(time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)),
	})
	ctx := context.Background()
	if _, err := eng.SeedTables(ctx, []model.Table{{Number: 1, Capacity: 4}, {Number: 2, Capacity: 2}}); err != nil {
		t.Fatal(err)
	}
	users := repository.NewUserRepo(st)
	for _, u := range []model.User{{Username: "boss", Role: model.RoleManager}, {Username: "sub", Role: model.RoleSubscriber}} {
		if _, err := users.Create(ctx, u, "pw", 4); err != nil {
			t.Fatal(err)
		}
	}
	reg := connection.NewRegistry()
	lim := ratelimit.New(config.RateLimitConfig{}, nil)

	e := echo.New()
	RegisterRoutes(e, st.Ready)
	RegisterAuth(e, handler.NewAuthHandler(&service.Auth{Users: users, Secret: secret, TTLMin: 5}), secret, lim)
	RegisterAdmin(e, handler.NewAdminHandler(eng, reg), secret, lim)
	return api{e: e, eng: eng, reg: reg}
}

func (a api) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a api) login(t *testing.T, user string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/auth/login", "", `{"username":"`+user+`","password":"pw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", user, rec.Code, rec.Body)
	}
	var resp struct {
		Access struct {
			Token string `json:"token"`
		} `json:"access"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.Access.Token
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	if rec := a.do(t, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("%d %s", rec.Code, rec.Body)
	}
}

func TestLoginAndMe(t *testing.T) {
	a := newAPI(t)
	if rec := a.do(t, http.MethodPost, "/v1/auth/login", "", `{"username":"boss","password":"bad"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: %d", rec.Code)
	}
	if rec := a.do(t, http.MethodPost, "/v1/auth/login", "", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty body: %d", rec.Code)
	}
	tok := a.login(t, "boss")
	rec := a.do(t, http.MethodGet, "/v1/me", tok, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"role":"MANAGER"`) {
		t.Fatalf("%d %s", rec.Code, rec.Body)
	}
}

func TestAdminRequiresStaff(t *testing.T) {
	a := newAPI(t)
	if rec := a.do(t, http.MethodGet, "/v1/tables", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: %d", rec.Code)
	}
	if rec := a.do(t, http.MethodGet, "/v1/tables", a.login(t, "sub"), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("subscriber: %d", rec.Code)
	}
}

func TestAdminEndpoints(t *testing.T) {
	a := newAPI(t)
	tok := a.login(t, "boss")
	ctx := context.Background()

	if _, err := a.eng.CreateReservation(ctx, service.NewReservation{
		Code: "A", Date: "2026-10-20", Time: "18:00", Guests: 4, Holder: model.Holder{Phone: "555"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.eng.AllocateTable(ctx, "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.eng.AllocateTable(ctx, "A"); err == nil {
		t.Fatal("second allocation should fail")
	}
	if _, err := a.eng.AddToWaitingList(ctx, service.NewWaitingEntry{Code: "W", Guests: 3, Contact: "555"}); err != nil {
		t.Fatal(err)
	}

	rec := a.do(t, http.MethodGet, "/v1/tables", tok, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("%d %s", rec.Code, rec.Body)
	}
	var tables []map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &tables)
	if len(tables) != 2 || tables[0]["status"] != "TAKEN" || tables[1]["status"] != "AVAILABLE" {
		t.Fatalf("tables = %v", tables)
	}

	rec = a.do(t, http.MethodGet, "/v1/reservations?date=2026-10-20", tok, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ARRIVED"`) {
		t.Fatalf("%d %s", rec.Code, rec.Body)
	}
	if rec = a.do(t, http.MethodGet, "/v1/reservations?date=20-10-2026", tok, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: %d", rec.Code)
	}

	rec = a.do(t, http.MethodGet, "/v1/waiting", tok, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"code":"W"`) {
		t.Fatalf("%d %s", rec.Code, rec.Body)
	}

	rec = a.do(t, http.MethodPost, "/v1/tables/1/release", tok, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"notified":"W"`) {
		t.Fatalf("%d %s", rec.Code, rec.Body)
	}
	if rec = a.do(t, http.MethodPost, "/v1/tables/1/release", tok, ""); rec.Code != http.StatusConflict {
		t.Fatalf("second release: %d", rec.Code)
	}
	if rec = a.do(t, http.MethodPost, "/v1/tables/9/release", tok, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown table: %d", rec.Code)
	}
	if rec = a.do(t, http.MethodPost, "/v1/tables/x/release", tok, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad number: %d", rec.Code)
	}

	rec = a.do(t, http.MethodPost, "/v1/sweep", tok, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "{\"expired\":0}\n" {
		t.Fatalf("%d %q", rec.Code, rec.Body)
	}

	if rec = a.do(t, http.MethodGet, "/v1/subscribers/2/visits", tok, ""); rec.Code != http.StatusOK || rec.Body.String() != "[]\n" {
		t.Fatalf("visits: %d %q", rec.Code, rec.Body)
	}

	a.reg.Add("10.0.0.1:4000", nil)
	rec = a.do(t, http.MethodGet, "/v1/connections", tok, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Fatalf("%d %s", rec.Code, rec.Body)
	}
}
