package timewindow

import (
	"time"
)

// Hours are the restaurant's operating hours in minutes since midnight. A
// reservation may start at any minute in [Open, Close).
type Hours struct {
	Open  int
	Close int
}

// ParseHours builds Hours from two HH:MM strings.
func ParseHours(open, closing string) (Hours, error) {
	o, err := ParseTime(open)
	if err != nil {
		return Hours{}, err
	}
	c, err := ParseTime(closing)
	if err != nil {
		return Hours{}, err
	}
	if c <= o {
		return Hours{}, ErrOutsideHours
	}
	return Hours{Open: o, Close: c}, nil
}

func (h Hours) allows(minutes int) bool {
	return minutes >= h.Open && minutes < h.Close
}

// Policy bundles the booking rules applied on create and update.
type Policy struct {
	SlotDuration time.Duration
	Grace        time.Duration
	MinNotice    time.Duration
	HorizonDays  int
	Hours        Hours
	Location     *time.Location
}

// DefaultPolicy returns the stock rules: 120 minute slots, 15 minute grace,
// one hour notice, 30 day horizon, open 11:00 to 23:00.
func DefaultPolicy() Policy {
	return Policy{
		SlotDuration: 120 * time.Minute,
		Grace:        15 * time.Minute,
		MinNotice:    60 * time.Minute,
		HorizonDays:  30,
		Hours:        Hours{Open: 11 * 60, Close: 23 * 60},
		Location:     time.Local,
	}
}

func (p Policy) loc() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// Slot builds a slot for date/hhmm using the policy duration and location.
func (p Policy) Slot(date, hhmm string) (Slot, error) {
	return NewSlot(date, hhmm, p.SlotDuration, p.loc())
}

// Today returns now's calendar date in the policy location.
func (p Policy) Today(now time.Time) string {
	return now.In(p.loc()).Format(DateLayout)
}

// ValidateBooking checks a requested slot against operating hours, the
// minimum notice window and the advance-booking horizon.
func (p Policy) ValidateBooking(now time.Time, s Slot) error {
	start := s.Start.In(p.loc())
	if !p.Hours.allows(start.Hour()*60 + start.Minute()) {
		return ErrOutsideHours
	}
	if s.Start.Before(now) {
		return ErrInPast
	}
	if s.Start.Before(now.Add(p.MinNotice)) {
		return ErrTooSoon
	}
	today, _ := ParseDate(p.Today(now), p.loc())
	last := today.AddDate(0, 0, p.HorizonDays+1)
	if !s.Start.Before(last) {
		return ErrBeyondHorizon
	}
	return nil
}

// ExpiresAt is the instant after which an unclaimed reservation expires.
func (p Policy) ExpiresAt(s Slot) time.Time {
	return s.Start.Add(p.Grace)
}

// ScanForward visits candidate slots after from, hour by hour: first the
// rest of from's day, then each following day from opening time, until the
// horizon is passed or visit returns false. Candidates that fail
// ValidateBooking are skipped.
func (p Policy) ScanForward(now time.Time, from Slot, visit func(Slot) bool) {
	loc := p.loc()
	day, _ := ParseDate(from.Date(), loc)
	start := from.Start.In(loc)
	minutes := start.Hour()*60 + start.Minute() + 60
	horizon, _ := ParseDate(p.Today(now), loc)
	horizon = horizon.AddDate(0, 0, p.HorizonDays)
	for !day.After(horizon) {
		for ; p.Hours.allows(minutes); minutes += 60 {
			st := day.Add(time.Duration(minutes) * time.Minute)
			cand := Slot{Start: st, End: st.Add(p.SlotDuration)}
			if p.ValidateBooking(now, cand) != nil {
				continue
			}
			if !visit(cand) {
				return
			}
		}
		day = day.AddDate(0, 0, 1)
		minutes = p.Hours.Open
	}
}
