package service

import (
	"errors"

	"github.com/iliyamo/restaurant-reservation/internal/database"
	"github.com/iliyamo/restaurant-reservation/internal/timewindow"
)

// Business-rule failures. The engine returns these unwrapped so callers can
// render them with errors.Is; anything else is an infrastructure error.
var (
	ErrInvalidGuests        = errors.New("party size must be at least one")
	ErrMissingCode          = errors.New("confirmation code is required")
	ErrMissingContact       = errors.New("casual guests need a phone number or an email")
	ErrUnknownSubscriber    = errors.New("subscriber not found")
	ErrSlotUnavailable      = errors.New("slot unavailable")
	ErrDuplicateCode        = errors.New("confirmation code already in use")
	ErrNotFound             = errors.New("not found")
	ErrNotModifiable        = errors.New("reservation can no longer be modified")
	ErrInvalidCode          = errors.New("invalid confirmation code")
	ErrAlreadyArrived       = errors.New("already arrived")
	ErrNotToday             = errors.New("reservation is not for today")
	ErrNotConfirmed         = errors.New("reservation is not confirmed")
	ErrNoTableAvailable     = errors.New("no table available")
	ErrAllocationFailed     = errors.New("allocation failed")
	ErrTableNotFound        = errors.New("table not found")
	ErrTableNotTaken        = errors.New("table is not taken")
	ErrInvalidTable         = errors.New("table number and capacity must be positive")
	ErrBillNotFound         = errors.New("bill not found")
	ErrNotSeated            = errors.New("party has not been seated")
	ErrInvalidPaymentMethod = errors.New("unknown payment method")
)

var businessErrors = []error{
	ErrInvalidGuests, ErrMissingCode, ErrMissingContact, ErrUnknownSubscriber,
	ErrSlotUnavailable, ErrDuplicateCode, ErrNotFound, ErrNotModifiable,
	ErrInvalidCode, ErrAlreadyArrived, ErrNotToday, ErrNotConfirmed,
	ErrNoTableAvailable, ErrAllocationFailed, ErrTableNotFound, ErrTableNotTaken,
	ErrInvalidTable, ErrBillNotFound, ErrNotSeated, ErrInvalidPaymentMethod,
	timewindow.ErrBadDate, timewindow.ErrBadTime, timewindow.ErrOutsideHours,
	timewindow.ErrInPast, timewindow.ErrTooSoon, timewindow.ErrBeyondHorizon,
	database.ErrNotReady,
}

// IsBusiness reports whether err is one of the named rule failures (or a
// time window validation error) rather than an infrastructure fault.
func IsBusiness(err error) bool {
	for _, b := range businessErrors {
		if errors.Is(err, b) {
			return true
		}
	}
	return false
}
