package model

import "time"

// ReservationStatus is the lifecycle state of a reservation. Values are
// stored verbatim in reservations.status.
type ReservationStatus string

const (
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusArrived   ReservationStatus = "ARRIVED"
	StatusLate      ReservationStatus = "LATE"
	StatusExpired   ReservationStatus = "EXPIRED"
	StatusCanceled  ReservationStatus = "CANCELED"
	StatusPaid      ReservationStatus = "PAID"
	StatusCompleted ReservationStatus = "COMPLETED"
)

// Terminal reports whether no further transition is possible.
func (s ReservationStatus) Terminal() bool {
	return s == StatusCanceled || s == StatusExpired || s == StatusCompleted
}

// Active reports whether a reservation in this state counts against the
// restaurant's seating capacity for its slot.
func (s ReservationStatus) Active() bool {
	return s == StatusConfirmed || s == StatusArrived || s == StatusLate
}

// ActiveStatuses lists the states that hold capacity.
var ActiveStatuses = []ReservationStatus{StatusConfirmed, StatusArrived, StatusLate}

// ParseReservationStatus maps a stored value back to the enum. ok is false
// for unknown values.
func ParseReservationStatus(s string) (ReservationStatus, bool) {
	switch st := ReservationStatus(s); st {
	case StatusConfirmed, StatusArrived, StatusLate, StatusExpired,
		StatusCanceled, StatusPaid, StatusCompleted:
		return st, true
	}
	return "", false
}

// Reservation is a booking for a party on a date and start time.
//
// Fields:
//
//	ID           – reservations.id, assigned by the store.
//	Code         – caller supplied confirmation code, unique.
//	Date, Time   – slot start as YYYY-MM-DD and HH:MM.
//	Guests       – party size, at least one.
//	SubscriberID – registered holder; nil for a casual guest.
//	Phone, Email – casual guest contact; empty for subscribers.
//	TableNumber  – bound table once the party has arrived.
//	ArrivedAt    – when the table was assigned.
type Reservation struct {
	ID           uint64
	Code         string
	Date         string
	Time         string
	Guests       int
	SubscriberID *uint64
	Phone        string
	Email        string
	Status       ReservationStatus
	TableNumber  *int
	ArrivedAt    *time.Time
	CreatedAt    time.Time
}

// IsSubscriber reports whether the holder is a registered subscriber.
func (r Reservation) IsSubscriber() bool { return r.SubscriberID != nil }

// Holder identifies who a reservation or waiting entry belongs to. A
// subscriber reference and casual contact fields are mutually exclusive.
type Holder struct {
	SubscriberID *uint64
	Phone        string
	Email        string
}
