package model

import "fmt"

type transitionKey struct {
	From ReservationStatus
	To   ReservationStatus
}

// validTransitions is the authoritative reservation state machine.
var validTransitions = map[transitionKey]bool{
	{StatusConfirmed, StatusArrived}:  true,
	{StatusConfirmed, StatusLate}:     true,
	{StatusConfirmed, StatusExpired}:  true,
	{StatusConfirmed, StatusCanceled}: true,
	{StatusLate, StatusArrived}:       true,
	{StatusLate, StatusExpired}:       true,
	{StatusLate, StatusCanceled}:      true,
	{StatusArrived, StatusPaid}:       true,
	{StatusArrived, StatusCanceled}:   true,
	{StatusPaid, StatusCompleted}:     true,
}

// CanTransition returns nil when a reservation may move from one state to
// the other.
func CanTransition(from, to ReservationStatus) error {
	if validTransitions[transitionKey{from, to}] {
		return nil
	}
	return fmt.Errorf("invalid transition: %s -> %s", from, to)
}
