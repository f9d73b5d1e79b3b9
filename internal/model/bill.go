package model

import (
	"strings"
	"time"
)

// BillSource tells which kind of record a bill was computed from.
type BillSource string

const (
	BillFromReservation BillSource = "RESERVATION"
	BillFromWaiting     BillSource = "WAITING"
)

// Bill is derived on demand and never stored on its own. Amounts are in
// cents.
type Bill struct {
	Code            string
	Diners          int
	Subtotal        int64
	DiscountPercent int
	Discount        int64
	Total           int64
	Role            string
	Source          BillSource
}

// VisitRecord is the archived snapshot of a paid subscriber visit.
type VisitRecord struct {
	ID           uint64
	SubscriberID uint64
	Code         string
	Diners       int
	ArrivedAt    time.Time
	DepartedAt   time.Time
	Total        int64
	Discounted   bool
	Status       string
}

// PaymentMethod is how a bill was settled.
type PaymentMethod string

const (
	PayCash   PaymentMethod = "CASH"
	PayCard   PaymentMethod = "CARD"
	PayCredit PaymentMethod = "CREDIT"
)

// ParsePaymentMethod accepts the method names case-insensitively.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(strings.ToUpper(s)); m {
	case PayCash, PayCard, PayCredit:
		return m, true
	}
	return "", false
}
