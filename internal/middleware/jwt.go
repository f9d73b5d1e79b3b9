package middleware // middleware holds the Echo middleware of the operator API

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/utils"
)

// Context keys set by JWTAuth.
const (
	CtxUserID   = "user_id"
	CtxUsername = "username"
	CtxRole     = "role"
)

// JWTAuth validates a Bearer access token issued by #LOGIN or
// POST /v1/auth/login and stores the bearer's id, username and role in the
// request context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			id, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(CtxUserID, id.UserID)
			c.Set(CtxUsername, id.Username)
			c.Set(CtxRole, id.Role)
			return next(c)
		}
	}
}
