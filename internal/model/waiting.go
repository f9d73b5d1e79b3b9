package model

import "time"

// WaitingStatus is the state of a walk-in party on the waiting list.
type WaitingStatus string

const (
	WaitingWaiting    WaitingStatus = "WAITING"
	WaitingNotified   WaitingStatus = "NOTIFIED"
	WaitingTableFound WaitingStatus = "TABLE_FOUND"
	WaitingPaid       WaitingStatus = "PAID"
)

// WaitingEntry is a walk-in party that could not be seated immediately.
// EntryTime is unix microseconds and defines FIFO order; it is strictly
// increasing across entries and never changes after insert.
type WaitingEntry struct {
	ID           uint64
	Code         string
	Contact      string
	SubscriberID *uint64
	Guests       int
	Status       WaitingStatus
	EntryTime    int64
	TableNumber  *int
	NotifiedAt   *time.Time
	SeatedAt     *time.Time
}

// IsSubscriber reports whether the party belongs to a registered subscriber.
func (w WaitingEntry) IsSubscriber() bool { return w.SubscriberID != nil }
