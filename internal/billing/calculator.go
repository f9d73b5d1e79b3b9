// Package billing turns a party size and holder role into a bill.
package billing

import (
	"fmt"

	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// DefaultUnitPrice is the flat per-diner price in cents.
const DefaultUnitPrice int64 = 10000

// DefaultSubscriberDiscount is the percentage taken off for subscribers.
const DefaultSubscriberDiscount = 10

// Calculator computes bills from a flat per-diner price. It holds no state
// beyond its configuration and is safe for concurrent use.
type Calculator struct {
	UnitPrice                 int64 // cents per diner
	SubscriberDiscountPercent int
}

// NewCalculator returns a Calculator with the stock pricing.
func NewCalculator() Calculator {
	return Calculator{UnitPrice: DefaultUnitPrice, SubscriberDiscountPercent: DefaultSubscriberDiscount}
}

// Compute returns the bill for diners people paid by a holder with role.
// The discount is rounded down to the cent.
func (c Calculator) Compute(code string, diners int, role string) model.Bill {
	subtotal := int64(diners) * c.UnitPrice
	pct := 0
	if role == model.RoleSubscriber {
		pct = c.SubscriberDiscountPercent
	}
	discount := subtotal * int64(pct) / 100
	return model.Bill{
		Code:            code,
		Diners:          diners,
		Subtotal:        subtotal,
		DiscountPercent: pct,
		Discount:        discount,
		Total:           subtotal - discount,
		Role:            role,
	}
}

// FormatAmount renders cents for the line protocol: whole units when there
// is no fractional part, otherwise two decimals.
func FormatAmount(cents int64) string {
	if cents%100 == 0 {
		return fmt.Sprintf("%d", cents/100)
	}
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
