package middleware

import "github.com/labstack/echo/v4"

// username returns the authenticated username, or "" for anonymous
// requests.
func username(c echo.Context) string {
	if v, ok := c.Get(CtxUsername).(string); ok {
		return v
	}
	return ""
}
