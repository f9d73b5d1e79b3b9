package protocol

import (
	"strconv"
	"strings"

	"github.com/iliyamo/restaurant-reservation/internal/billing"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/service"
	"github.com/iliyamo/restaurant-reservation/internal/timewindow"
)

// line joins response fields with the pipe sub-delimiter.
func line(fields ...string) string { return strings.Join(fields, "|") }

func itoa(n int) string { return strconv.Itoa(n) }

func utoa(n uint64) string { return strconv.FormatUint(n, 10) }

func errorLine(reason ...string) string { return line(append([]string{"ERROR"}, reason...)...) }

// EncodeReservation renders RESERVATION|id|guests|date|time|code|subscriberId|status|role.
// A casual holder is reported with subscriber id 0.
func EncodeReservation(r service.ReservationInfo) string {
	sub := "0"
	if r.SubscriberID != nil {
		sub = utoa(*r.SubscriberID)
	}
	return line("RESERVATION", utoa(r.ID), itoa(r.Guests), r.Date, r.Time, r.Code, sub, string(r.Status), r.Role)
}

// EncodeWaitingList renders WAITING_LIST|code:guests:status|... in FIFO
// order. It is both the #GET_WAITING_LIST response and the push sent to
// subscribers.
func EncodeWaitingList(entries []model.WaitingEntry) string {
	fields := make([]string, 0, len(entries)+1)
	fields = append(fields, "WAITING_LIST")
	for _, w := range entries {
		fields = append(fields, w.Code+":"+itoa(w.Guests)+":"+string(w.Status))
	}
	return line(fields...)
}

// EncodeWaitingNotified is pushed when an entry is promoted.
func EncodeWaitingNotified(code string) string { return line("WAITING_NOTIFIED", code) }

func encodeSlots(slots []timewindow.Slot) string {
	fields := []string{"SUGGESTED_SLOTS"}
	for _, s := range slots {
		fields = append(fields, s.Date()+" "+s.Time())
	}
	return line(fields...)
}

func encodeDay(date string, rs []model.Reservation) string {
	fields := []string{"RESERVATIONS_FOR_DATE", date}
	for _, r := range rs {
		fields = append(fields, r.Time)
	}
	return line(fields...)
}

func encodeBill(b model.Bill) string {
	return line("BILL", b.Code, itoa(b.Diners), billing.FormatAmount(b.Subtotal),
		itoa(b.DiscountPercent), billing.FormatAmount(b.Total), b.Role)
}

func encodeTables(tables []model.Table) string {
	fields := []string{"TABLES"}
	for _, t := range tables {
		fields = append(fields, itoa(t.Number)+":"+itoa(t.Capacity)+":"+string(t.Status))
	}
	return line(fields...)
}
