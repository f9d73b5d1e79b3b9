package service

import "github.com/iliyamo/restaurant-reservation/internal/model"

// Events receives engine side effects after the transaction that caused
// them has committed. Implementations must not block for long; the engine
// calls them on the request goroutine.
type Events interface {
	// WaitingListChanged carries the full list in FIFO order.
	WaitingListChanged(entries []model.WaitingEntry)
	// WaitingNotified fires once per promoted entry.
	WaitingNotified(entry model.WaitingEntry)
}

// NopEvents discards everything.
type NopEvents struct{}

func (NopEvents) WaitingListChanged([]model.WaitingEntry) {}
func (NopEvents) WaitingNotified(model.WaitingEntry)      {}

// MultiEvents fans every event out to each listener in order.
type MultiEvents []Events

func (m MultiEvents) WaitingListChanged(entries []model.WaitingEntry) {
	for _, l := range m {
		l.WaitingListChanged(entries)
	}
}

func (m MultiEvents) WaitingNotified(entry model.WaitingEntry) {
	for _, l := range m {
		l.WaitingNotified(entry)
	}
}

// outbox collects events raised inside a transaction so they can be
// delivered once it commits.
type outbox struct {
	notified    []model.WaitingEntry
	listChanged bool
}

func (o *outbox) promoted(w *model.WaitingEntry) {
	if w == nil {
		return
	}
	o.notified = append(o.notified, *w)
	o.listChanged = true
}
