package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/middleware"
	"github.com/iliyamo/restaurant-reservation/internal/service"
)

// AuthHandler exposes the identity lookup over HTTP. Tokens it issues are
// also accepted by #IDENTIFY on the line protocol.
type AuthHandler struct {
	Auth *service.Auth
}

func NewAuthHandler(a *service.Auth) *AuthHandler {
	return &AuthHandler{Auth: a}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

// Login verifies credentials and returns an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tok, u, err := h.Auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		c.Logger().Errorf("login: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	return c.JSON(http.StatusOK, authResp{
		User:   userPart{ID: u.ID, Username: u.Username, Role: u.Role},
		Access: tokenPart{Token: tok.Token, Expires: tok.Exp},
	})
}

// Me echoes the identity carried by the bearer token.
func (h *AuthHandler) Me(c echo.Context) error {
	id, _ := c.Get(middleware.CtxUserID).(uint64)
	name, _ := c.Get(middleware.CtxUsername).(string)
	role, _ := c.Get(middleware.CtxRole).(string)
	return c.JSON(http.StatusOK, userPart{ID: id, Username: name, Role: role})
}
