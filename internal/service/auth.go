package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
	"github.com/iliyamo/restaurant-reservation/internal/utils"
)

// ErrInvalidCredentials covers both an unknown username and a wrong
// password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Auth is the identity lookup used by #LOGIN, #IDENTIFY and the operator
// API: it checks bcrypt passwords and issues and verifies access tokens.
type Auth struct {
	Users  *repository.UserRepo
	Secret string
	TTLMin int
}

// Login verifies the credentials and returns a signed access token.
func (a *Auth) Login(ctx context.Context, username, password string) (utils.AccessToken, model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return utils.AccessToken{}, model.User{}, ErrInvalidCredentials
	}
	u, err := a.Users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return utils.AccessToken{}, model.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return utils.AccessToken{}, model.User{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return utils.AccessToken{}, model.User{}, ErrInvalidCredentials
	}
	tok, err := utils.NewAccessToken(a.Secret, utils.Identity{UserID: u.ID, Username: u.Username, Role: u.Role}, a.TTLMin)
	if err != nil {
		return utils.AccessToken{}, model.User{}, err
	}
	return tok, u, nil
}

// Verify parses a token issued by Login.
func (a *Auth) Verify(token string) (utils.Identity, error) {
	return utils.ParseAccessToken(a.Secret, strings.TrimSpace(token))
}
