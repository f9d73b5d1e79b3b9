package model

import "time"

// Roles returned by the identity lookup. Connections that never identify
// themselves act as RoleGuest.
const (
	RoleGuest          = "GUEST"
	RoleSubscriber     = "SUBSCRIBER"
	RoleRepresentative = "REPRESENTATIVE"
	RoleManager        = "MANAGER"
)

// IsStaff reports whether role belongs to restaurant personnel.
func IsStaff(role string) bool {
	return role == RoleRepresentative || role == RoleManager
}

// User represents a row of the users table.
//
// Fields:
//
//	ID           – primary key, also the subscriber id on reservations.
//	Username     – unique login name.
//	PasswordHash – bcrypt hash.
//	Role         – SUBSCRIBER, REPRESENTATIVE or MANAGER.
//	Phone, Email – contact details used for notifications.
type User struct {
	ID           uint64
	Username     string
	PasswordHash string
	Role         string
	Phone        string
	Email        string
	CreatedAt    time.Time
}
