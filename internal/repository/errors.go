// Package repository defines the data access layer over the relational
// store: reservations, physical tables, the waiting list, visit history and
// the users used for identity lookup. Methods with a Tx suffix run inside a
// caller-owned transaction; the caller must commit or roll back.
//
// The sentinel errors below are reused across repositories so that the
// engine can tell "no such row" apart from infrastructure failures.
package repository

import "errors"

// ErrReservationNotFound is returned when no reservation matches the id or
// confirmation code.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrTableNotFound is returned when no table matches, including when no
// available table is large enough for a party.
var ErrTableNotFound = errors.New("table not found")

// ErrWaitingNotFound is returned when no waiting entry matches.
var ErrWaitingNotFound = errors.New("waiting entry not found")

// ErrUserNotFound is returned by the identity lookup for unknown users.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicate signals a unique-index violation, such as a confirmation
// code or table number that already exists.
var ErrDuplicate = errors.New("duplicate key")

// ErrConflict is returned when a conditional update matched no row because
// the record was no longer in the expected state, typically because a
// concurrent transaction changed it first.
var ErrConflict = errors.New("conflict")
