package handler // handler defines the operator HTTP API

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports whether the process is up and its store is usable. Load
// balancers only look at the status code.
func Health(ready func() bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ready != nil && !ready() {
			return c.String(http.StatusServiceUnavailable, "db not ready")
		}
		return c.String(http.StatusOK, "ok")
	}
}
