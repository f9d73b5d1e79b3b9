package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/database"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/utils"
)

// UserRepo is the identity lookup: it maps usernames and subscriber ids to
// a role string.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(st *database.Store) *UserRepo { return &UserRepo{DB: st.DB()} }

// ErrUsernameExists is returned by Create for a taken username.
var ErrUsernameExists = errors.New("username already exists")

const userColumns = `id, username, password_hash, role, phone, email, created_at`

func scanUser(s rowScanner) (model.User, error) {
	var u model.User
	var created int64
	if err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Phone, &u.Email, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	u.CreatedAt = fromMillis(created)
	return u, nil
}

// Create hashes password with bcrypt at the given cost, inserts the user and
// returns its ID.
func (r *UserRepo) Create(ctx context.Context, u model.User, password string, cost int) (uint64, error) {
	username := strings.ToLower(strings.TrimSpace(u.Username))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, role, phone, email, created_at) VALUES (?,?,?,?,?,?)",
		username, hash, u.Role, u.Phone, u.Email, toMillis(time.Now()))
	if err != nil {
		if database.IsDuplicateKey(err) {
			return 0, ErrUsernameExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByUsername fetches a user by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", username))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// RoleOfTx returns the role of a subscriber id inside tx. Unknown ids are
// treated as guests so a dangling reference never blocks billing.
func (r *UserRepo) RoleOfTx(ctx context.Context, tx *sql.Tx, id *uint64) (string, error) {
	return r.roleOf(ctx, tx, id)
}

// RoleOf is RoleOfTx outside a transaction.
func (r *UserRepo) RoleOf(ctx context.Context, id *uint64) (string, error) {
	return r.roleOf(ctx, r.DB, id)
}

func (r *UserRepo) roleOf(ctx context.Context, q querier, id *uint64) (string, error) {
	if id == nil {
		return model.RoleGuest, nil
	}
	var role string
	err := q.QueryRowContext(ctx, "SELECT role FROM users WHERE id=?", *id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RoleGuest, nil
	}
	if err != nil {
		return "", err
	}
	return role, nil
}
