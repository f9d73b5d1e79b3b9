package router // package router registers the operator HTTP API routes

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/handler"
	"github.com/iliyamo/restaurant-reservation/internal/middleware"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/ratelimit"
)

// RegisterRoutes registers routes that need no authentication: the health
// check for load balancers.
func RegisterRoutes(e *echo.Echo, ready func() bool) {
	e.GET("/healthz", handler.Health(ready))
}

// RegisterAuth registers the login endpoint under /v1/auth and the
// authenticated /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter *ratelimit.Limiter) {
	g := e.Group("/v1/auth")
	g.Use(middleware.RateLimit(limiter))
	g.POST("/login", a.Login)

	me := e.Group("/v1")
	me.Use(middleware.JWTAuth(jwtSecret))
	me.GET("/me", a.Me)
}

// RegisterAdmin registers the staff endpoints. Every route requires a
// MANAGER or REPRESENTATIVE token and is rate limited per user.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string, limiter *ratelimit.Limiter) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleManager, model.RoleRepresentative))
	g.Use(middleware.RateLimit(limiter))

	g.GET("/connections", h.Connections)
	g.GET("/tables", h.Tables)
	g.GET("/waiting", h.Waiting)
	g.GET("/reservations", h.Reservations)
	g.POST("/sweep", h.Sweep)
	g.POST("/tables/:number/release", h.ReleaseTable)
	g.GET("/subscribers/:id/visits", h.Visits)
}
