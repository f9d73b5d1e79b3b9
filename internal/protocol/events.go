package protocol

import (
	"github.com/iliyamo/restaurant-reservation/internal/connection"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// Broadcaster turns engine events into pushes to the waiting list
// subscribers of a registry.
type Broadcaster struct {
	Registry *connection.Registry
}

func (b Broadcaster) WaitingListChanged(entries []model.WaitingEntry) {
	b.Registry.Broadcast(EncodeWaitingList(entries))
}

func (b Broadcaster) WaitingNotified(entry model.WaitingEntry) {
	b.Registry.Broadcast(EncodeWaitingNotified(entry.Code))
}
