package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/ratelimit"
	"github.com/iliyamo/restaurant-reservation/internal/utils"
)

func serve(t *testing.T, h echo.HandlerFunc, header string, mw ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/x", h, mw...)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRole(t *testing.T) {
	const secret = "s3cret"
	tok, err := utils.NewAccessToken(secret, utils.Identity{UserID: 9, Username: "rep", Role: model.RoleRepresentative}, 5)
	if err != nil {
		t.Fatal(err)
	}
	ok := func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get(CtxUsername).(string))
	}
	staff := []echo.MiddlewareFunc{JWTAuth(secret), RequireRole(model.RoleManager, model.RoleRepresentative)}

	cases := []struct {
		name   string
		header string
		mw     []echo.MiddlewareFunc
		code   int
	}{
		{"missing token", "", staff, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", staff, http.StatusUnauthorized},
		{"staff", "Bearer " + tok.Token, staff, http.StatusOK},
		{"wrong role", "Bearer " + tok.Token, []echo.MiddlewareFunc{JWTAuth(secret), RequireRole(model.RoleManager)}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, ok, tc.header, tc.mw...)
			if rec.Code != tc.code {
				t.Fatalf("code = %d, body = %s", rec.Code, rec.Body)
			}
			if tc.code == http.StatusOK && rec.Body.String() != "rep" {
				t.Fatalf("body = %s", rec.Body)
			}
		})
	}
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	l := ratelimit.New(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil)
	rec := serve(t, func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, "", RateLimit(l))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("code = %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Fatal("disabled limiter should not set headers")
	}
}
