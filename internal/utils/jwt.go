package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// ErrInvalidToken is returned by ParseAccessToken for any token that fails
// signature, expiry or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken represents a signed JWT access token along with its expiry.
// Clients receive it from #LOGIN and present it with #IDENTIFY on later
// connections, or as a Bearer token on the operator HTTP API.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID   uint64
	Username string
	Role     string
}

// NewAccessToken builds and signs an HS256 JWT for a user. The JWT carries
// the standard subject (sub), expiry (exp) and issued-at (iat) claims plus
// the username and role used by the protocol's permission check.
func NewAccessToken(secret string, id Identity, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  id.UserID,
		"usr":  id.Username,
		"role": id.Role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw with secret and returns the identity it
// carries. Only HMAC signing methods are accepted.
func ParseAccessToken(secret, raw string) (Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	var id Identity
	// JSON numbers decode as float64
	if sub, ok := claims["sub"].(float64); ok && sub > 0 {
		id.UserID = uint64(sub)
	}
	id.Username, _ = claims["usr"].(string)
	id.Role, _ = claims["role"].(string)
	if id.Username == "" || id.Role == "" {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}
