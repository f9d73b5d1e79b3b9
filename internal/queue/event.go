// Package queue carries waiting list notifications over RabbitMQ: the
// server publishes one message per promoted party and a standalone consumer
// appends them to logs/notifications.log.
package queue

import (
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// WaitingNotifiedQueue is the durable queue both sides declare.
const WaitingNotifiedQueue = "waiting.notified"

// WaitingNotifiedEvent is published when a waiting party is offered a
// table. It carries enough for a downstream notifier to reach the party
// without querying the primary database.
type WaitingNotifiedEvent struct {
	Code         string  `json:"code"`
	Guests       int     `json:"guests"`
	Contact      string  `json:"contact,omitempty"`
	SubscriberID *uint64 `json:"subscriber_id,omitempty"`
	NotifiedAt   string  `json:"notified_at"`
}

// NewWaitingNotifiedEvent builds the payload for w. now is used when the
// entry carries no notification time.
func NewWaitingNotifiedEvent(w model.WaitingEntry, now time.Time) WaitingNotifiedEvent {
	at := now
	if w.NotifiedAt != nil {
		at = *w.NotifiedAt
	}
	return WaitingNotifiedEvent{
		Code:         w.Code,
		Guests:       w.Guests,
		Contact:      w.Contact,
		SubscriberID: w.SubscriberID,
		NotifiedAt:   at.UTC().Format(time.RFC3339),
	}
}
